package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/sheetscribe/api/internal/artifact"
	"github.com/sheetscribe/api/internal/browser"
	"github.com/sheetscribe/api/internal/config"
	"github.com/sheetscribe/api/internal/handler"
	"github.com/sheetscribe/api/internal/media/pdf"
	"github.com/sheetscribe/api/internal/notation"
	"github.com/sheetscribe/api/internal/pipeline"
	"github.com/sheetscribe/api/internal/service"
	"github.com/sheetscribe/api/internal/services/homr"
	"github.com/sheetscribe/api/internal/store"
	ws "github.com/sheetscribe/api/internal/websocket"
	"github.com/sheetscribe/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Artifact store (per-job working directories)
	artifacts, err := artifact.NewStore(cfg.Jobs.RootDir)
	if err != nil {
		log.Fatalf("Failed to create artifact store: %v", err)
	}

	// Job registry
	jobs := store.New()

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// External tool adapters
	recognizer := homr.NewCLI(
		homr.WithDir(cfg.Homr.Dir),
		homr.WithTimeout(cfg.Homr.Timeout()),
	)
	rasterizer := pdf.NewPoppler(
		pdf.WithBinary(cfg.PDF.PdftoppmPath),
		pdf.WithDPI(cfg.PDF.DPI),
	)
	converter := notation.NewLibrary()

	// Pipeline and worker dispatch
	pipe := pipeline.New(jobs, artifacts, recognizer, rasterizer, converter, cfg.Upload.MaxBytes(), hub.BroadcastJob)
	pool := worker.NewPool(cfg.Jobs.Workers, cfg.Jobs.QueueSize, pipe.Run)
	pool.Start()

	// Services and handlers
	jobService := service.NewJobService(jobs, artifacts, pool, cfg.Upload.MaxBytes(), cfg.Jobs.TTL())
	jobHandler := handler.NewJobHandler(jobService, cfg.Upload.MaxMB)
	healthHandler := handler.NewHealthHandler(jobService, recognizer, cfg.Upload.MaxMB)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    int(cfg.Upload.MaxBytes()) + 1024*1024,
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{Format: logFormat}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// API routes
	api := app.Group("/api")
	api.Get("/health", healthHandler.Health)
	api.Post("/jobs", jobHandler.Create)
	api.Get("/jobs/:id", jobHandler.Get)
	api.Get("/jobs/:id/files/:kind", jobHandler.File)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/jobs/:id", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("id"))
	}))

	// Static frontend with no-cache headers for dev freshness
	if info, err := os.Stat(cfg.Server.FrontendDir); err == nil && info.IsDir() {
		app.Static("/", cfg.Server.FrontendDir, fiber.Static{
			ModifyResponse: noCacheHeaders,
		})
		app.Get("/*", func(c *fiber.Ctx) error {
			if strings.HasPrefix(c.Path(), "/api/") {
				return fiber.ErrNotFound
			}
			noCacheHeaders(c)
			return c.SendFile(cfg.Server.FrontendDir + "/index.html")
		})
	}

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	baseURL := "http://" + browserHost(cfg.Server.Host) + ":" + cfg.Server.Port

	// Optional local browser launch
	launchCtx, cancelLaunch := context.WithCancel(context.Background())
	defer cancelLaunch()
	if cfg.Server.AutoOpenBrowser {
		go browser.LaunchWhenReady(launchCtx, baseURL, browser.Target(cfg.Server.BrowserTarget))
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		cancelLaunch()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		pool.Stop()
		artifacts.PurgeAll()
	}()

	log.Printf("Server starting on %s", addr)
	log.Printf("Jobs directory: %s", artifacts.Root())
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}

func noCacheHeaders(c *fiber.Ctx) error {
	c.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	c.Set("Pragma", "no-cache")
	c.Set("Expires", "0")
	return nil
}

func browserHost(host string) string {
	if host == "0.0.0.0" || host == "::" {
		return "127.0.0.1"
	}
	return host
}
