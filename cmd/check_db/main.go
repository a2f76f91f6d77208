// check_db is a diagnostic CLI: connect to the configured database and
// print board/event counts, used to sanity-check a deployment's schema
// and data without going through the full server.
package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"realtime-backend/internal/config"
	"realtime-backend/internal/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[check_db] no .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.Database.URL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	fmt.Println("connected to database")
	fmt.Println()

	var boardCount int64
	if err := db.Table("boards").Count(&boardCount).Error; err != nil {
		log.Fatalf("failed to count boards: %v", err)
	}
	fmt.Printf("boards: %d\n", boardCount)

	var eventCount int64
	if err := db.Table("drawing_events").Count(&eventCount).Error; err != nil {
		log.Fatalf("failed to count drawing_events: %v", err)
	}
	fmt.Printf("drawing_events: %d\n", eventCount)

	var snapshotCount int64
	if err := db.Table("board_snapshots").Count(&snapshotCount).Error; err != nil {
		log.Fatalf("failed to count board_snapshots: %v", err)
	}
	fmt.Printf("board_snapshots: %d\n", snapshotCount)
	fmt.Println()

	type boardRow struct {
		ID        string
		Name      string
		OwnerID   string
		IsPrivate bool
		CreatedAt string
	}
	var boards []boardRow
	if err := db.Table("boards").
		Select("id, name, owner_id, is_private, created_at").
		Order("created_at DESC").
		Limit(10).
		Scan(&boards).Error; err != nil {
		log.Fatalf("failed to list recent boards: %v", err)
	}

	fmt.Println("recent boards (last 10):")
	for _, b := range boards {
		fmt.Printf("  - id=%s name=%q owner=%s private=%v created=%s\n",
			b.ID, b.Name, b.OwnerID, b.IsPrivate, b.CreatedAt)
	}
}
