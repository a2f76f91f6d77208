package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"realtime-backend/internal/model"
)

// DB is the process-global GORM handle. The pool it wraps is process-wide
// by design; per-board write ordering is enforced above this layer by the
// sequencer, not by database locking.
var DB *gorm.DB

// Connect opens the Postgres connection described by url, tunes the pool,
// and migrates the schema.
func Connect(url string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	DB = db

	if err := db.AutoMigrate(
		&model.Board{},
		&model.DrawEvent{},
		&model.Snapshot{},
	); err != nil {
		log.Printf("⚠️ AutoMigrate warning: %v", err)
	}

	// FORCE MANUAL CREATION (fallback for persistent missing table issue).
	// AutoMigrate has been seen to silently no-op in some managed envs.
	sql := `CREATE TABLE IF NOT EXISTS drawing_events (
		board_id varchar(64) NOT NULL,
		seq bigint NOT NULL,
		type varchar(16) NOT NULL,
		user_id varchar(64) NOT NULL,
		"timestamp" timestamptz NOT NULL,
		payload jsonb NOT NULL,
		PRIMARY KEY (board_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_drawing_events_board_seq ON drawing_events (board_id, seq);`

	if err := db.Exec(sql).Error; err != nil {
		log.Printf("⚠️ Manual Table Creation Warning: %v", err)
	}

	return db, nil
}

// Ping verifies the connection is alive.
func Ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
