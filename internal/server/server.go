package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"realtime-backend/internal/auth"
	"realtime-backend/internal/config"
	"realtime-backend/internal/eventstore"
	"realtime-backend/internal/handler"
	"realtime-backend/internal/presence"
	"realtime-backend/internal/ratelimit"
	"realtime-backend/internal/sequencer"
	"realtime-backend/internal/snapshot"
)

// Server wraps the Fiber app and every component wired into it.
type Server struct {
	app *fiber.App
	cfg *config.Config
	db  *gorm.DB

	boardHandler  *handler.BoardHandler
	wsHandler     *handler.WSHandler
	healthHandler *handler.HealthHandler

	verifier  *auth.Verifier
	presences *presence.Manager
}

// New wires every component named in the runtime topology: event store,
// sequencer, presence manager, rate limiter, snapshot engine, token
// verifier, and the handlers built on top of them.
func New(cfg *config.Config, db *gorm.DB) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Whiteboard Realtime Gateway",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false,
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		BodyLimit:             4 * 1024 * 1024,
		DisableStartupMessage: false,
	})

	store := eventstore.New(db)
	seq := sequencer.New(store)
	presences := presence.New(cfg.RateLimit.CursorBatchPeriod)
	presences.Start(context.Background())

	snapshotEngine := snapshot.New(store, snapshot.RenderConfig{
		MaxDimension: cfg.Snapshot.MaxDimension,
		Padding:      cfg.Snapshot.Padding,
	})

	verifier := auth.NewVerifier(cfg.Auth.SecretKey)

	rlConfig := ratelimit.Config{
		DrawBucketSize:   cfg.RateLimit.DrawBucketSize,
		DrawRefillRate:   cfg.RateLimit.DrawRefillRate,
		CursorBucketSize: cfg.RateLimit.CursorBucketSize,
		CursorRefillRate: cfg.RateLimit.CursorRefillRate,
	}

	boardHandler := handler.NewBoardHandler(store)
	wsHandler := handler.NewWSHandler(store, seq, presences, verifier, snapshotEngine, cfg.Snapshot.CompactionThreshold, rlConfig)
	healthHandler := handler.NewHealthHandler(db)

	// NewWSHandler has wired the cursor-batch FlushFunc; start the ticker now.
	presences.Start(context.Background())

	return &Server{
		app:           app,
		cfg:           cfg,
		db:            db,
		boardHandler:  boardHandler,
		wsHandler:     wsHandler,
		healthHandler: healthHandler,
		verifier:      verifier,
		presences:     presences,
	}
}

// SetupMiddleware installs panic recovery, request logging, and CORS.
func (s *Server) SetupMiddleware() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, DELETE, OPTIONS",
		AllowCredentials: true,
	}))
}

// SetupRoutes mounts the board REST surface, the health endpoints, and the
// single WebSocket upgrade route.
func (s *Server) SetupRoutes() {
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	writeLimiter := limiter.New(limiter.Config{
		Max:        30,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"code": "TOO_MANY_REQUESTS",
			})
		},
	})

	requireAuth := auth.RequireAuthMiddleware(s.verifier)
	optionalAuth := auth.OptionalAuthMiddleware(s.verifier)

	boards := s.app.Group("/api/boards", optionalAuth)
	boards.Get("", requireAuth, s.boardHandler.List)
	boards.Post("", writeLimiter, requireAuth, s.boardHandler.Create)
	boards.Delete("/:id", writeLimiter, requireAuth, s.boardHandler.Delete)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	s.app.Get("/ws", websocket.New(s.wsHandler.Handle, websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("[Server] shutting down")
		s.presences.Stop()
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Fatalf("[Server] shutdown error: %v", err)
		}
	}()

	log.Printf("[Server] whiteboard gateway starting on %s", s.cfg.Server.Port)
	log.Printf("[Server] websocket endpoint: ws://localhost%s/ws", s.cfg.Server.Port)

	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown stops the cursor-batch ticker and shuts the server down, waiting
// up to 30 seconds for open connections.
func (s *Server) Shutdown() error {
	s.presences.Stop()
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
