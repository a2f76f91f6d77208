package main

import (
	"log"

	"realtime-backend/internal/config"
	"realtime-backend/internal/database"
	"realtime-backend/internal/server"
)

func main() {
	cfg := config.Load()

	db, err := database.Connect(cfg.Database.URL)
	if err != nil {
		log.Fatalf("[Server] database connection failed: %v", err)
	}
	defer database.Close()

	if err := database.Ping(); err != nil {
		log.Fatalf("[Server] database ping failed: %v", err)
	}
	log.Println("[Server] database connected")

	srv := server.New(cfg, db)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	if err := srv.Start(); err != nil {
		log.Fatalf("[Server] failed to start: %v", err)
	}
}
