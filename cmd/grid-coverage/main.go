package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/esmtools/grid-coverage/internal/api/http"
	"github.com/esmtools/grid-coverage/internal/config"
	"github.com/esmtools/grid-coverage/internal/extract"
	"github.com/esmtools/grid-coverage/internal/grid/sources"
	"github.com/esmtools/grid-coverage/internal/scheduler"
	"github.com/esmtools/grid-coverage/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound store object fetches.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Dataset sources: local NetCDF files plus remote zarr stores with
	// resilience (backoff + circuit breaker).
	var srcs []sources.Source
	var remote []sources.Source

	for _, ref := range cfg.Files {
		srcs = append(srcs, sources.NewNetCDFSource(ref.Name, ref.Location))
	}
	for _, ref := range cfg.ZarrStores {
		src := sources.NewZarrSource(ref.Name, ref.Location, httpClient)
		srcs = append(srcs, src)
		remote = append(remote, src)
	}

	// Registry of loaded read-only datasets.
	registry := store.NewRegistry()

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancelLoad()
	for _, src := range srcs {
		ds, err := src.Load(loadCtx)
		if err != nil {
			log.Fatalf("failed to load dataset %s: %v", src.Name(), err)
		}
		registry.Register(src.Name(), ds)
		log.Printf("INFO: loaded dataset %s (fields: %v)", src.Name(), ds.FieldNames())
	}

	// Core service running the extraction pipeline.
	service := extract.NewService(registry)

	// Scheduler that periodically reloads remote datasets.
	sched := scheduler.New(remote, cfg.RefreshInterval, registry)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "grid-coverage",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "grid-coverage",
			"datasets": registry.Names(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
