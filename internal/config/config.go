package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the application's full runtime configuration, loaded once at
// process start from the environment (with .env support for local dev).
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Auth      AuthConfig
	Database  DatabaseConfig
	Snapshot  SnapshotConfig
	RateLimit RateLimitConfig
}

// ServerConfig controls the HTTP/WS listener.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// WebSocketConfig tunes the WebSocket transport.
type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
}

// CORSConfig controls the REST surface's CORS policy.
type CORSConfig struct {
	AllowOrigins string
}

// AuthConfig controls bearer-token verification. When SecretKey is empty,
// tokens are accepted as present but never verified (resolve to "no
// verified user"); this is intentional per the access-control contract.
type AuthConfig struct {
	SecretKey string
}

// DatabaseConfig holds the Postgres connection string.
type DatabaseConfig struct {
	URL string
}

// SnapshotConfig tunes the Snapshot Engine.
type SnapshotConfig struct {
	CompactionThreshold int64
	MaxDimension        int
	Padding             float64
}

// RateLimitConfig tunes the per-connection token buckets.
type RateLimitConfig struct {
	DrawBucketSize    int
	DrawRefillRate    float64
	CursorBucketSize  int
	CursorRefillRate  float64
	CursorBatchPeriod time.Duration
}

// Load reads configuration from the environment. DATABASE_URL is the only
// required variable; everything else has a sane default.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[Config] no .env file found, using environment variables")
	}

	dbURL := getRequiredEnv("DATABASE_URL")

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getInt("WS_READ_BUFFER_SIZE", 16*1024),
			WriteBufferSize: getInt("WS_WRITE_BUFFER_SIZE", 16*1024),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
		},
		Auth: AuthConfig{
			SecretKey: getEnv("AUTH_SECRET_KEY", ""),
		},
		Database: DatabaseConfig{
			URL: dbURL,
		},
		Snapshot: SnapshotConfig{
			CompactionThreshold: int64(getInt("COMPACTION_THRESHOLD", 5000)),
			MaxDimension:        getInt("SNAPSHOT_MAX_DIMENSION", 16384),
			Padding:             float64(getInt("SNAPSHOT_PADDING", 100)),
		},
		RateLimit: RateLimitConfig{
			DrawBucketSize:    getInt("DRAW_BUCKET_SIZE", 30),
			DrawRefillRate:    float64(getInt("DRAW_REFILL_RATE", 60)),
			CursorBucketSize:  getInt("CURSOR_BUCKET_SIZE", 60),
			CursorRefillRate:  float64(getInt("CURSOR_REFILL_RATE", 120)),
			CursorBatchPeriod: getDuration("CURSOR_BATCH_MS", 50*time.Millisecond),
		},
	}
}

// getRequiredEnv fetches a required environment variable or aborts.
func getRequiredEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("[Config] required environment variable %s is not set", key)
	}
	return value
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getDuration treats a bare numeric value as milliseconds when the key
// ends in _MS, otherwise as seconds; either way it falls back to
// time.ParseDuration for suffixed values like "5s".
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if !strings.ContainsAny(value, "nsuµmh") {
		if n, err := strconv.Atoi(value); err == nil {
			if strings.HasSuffix(key, "_MS") {
				return time.Duration(n) * time.Millisecond
			}
			return time.Duration(n) * time.Second
		}
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
