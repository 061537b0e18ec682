package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/akarpov/skycast/internal/api/http"
	"github.com/akarpov/skycast/internal/config"
	"github.com/akarpov/skycast/internal/location"
	"github.com/akarpov/skycast/internal/logger"
	"github.com/akarpov/skycast/internal/pipeline"
	"github.com/akarpov/skycast/internal/store"
	"github.com/akarpov/skycast/internal/weather"
)

func main() {
	log := logger.Get()
	defer func() { _ = logger.Close() }()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Durable single-slot cache for the last good snapshot.
	cache, err := store.NewSQLite(cfg.CacheDBPath)
	if err != nil {
		log.Fatalf("failed to open weather cache: %v", err)
	}
	defer cache.Close()

	client := weather.NewClient(httpClient, cfg.OpenWeatherBaseURL, cfg.OpenWeatherAPIKey)

	resolver := location.NewStaticResolver(weather.Coordinates{
		Latitude:  cfg.Latitude,
		Longitude: cfg.Longitude,
	})
	caps := &location.DeviceSettings{
		Enabled:   cfg.LocationEnabled,
		Consent:   cfg.Consent(),
		ProbeAddr: cfg.NetProbeAddr,
	}
	geocoder := location.NewNominatimGeocoder(httpClient)

	pipe := pipeline.New(pipeline.Config{
		Fetcher:      client,
		Cache:        cache,
		Resolver:     resolver,
		Capabilities: caps,
		Geocoder:     geocoder,
		Region:       cfg.RegionCode,
		FixTimeout:   cfg.FixTimeout,
	})

	// App open is a fetch trigger: render the cached snapshot, then run one
	// refresh cycle before serving. A failed refresh is logged, not fatal.
	launchCtx, launchCancel := context.WithTimeout(context.Background(), cfg.FixTimeout+cfg.HTTPTimeout)
	if _, err := pipe.Launch(launchCtx); err != nil {
		log.Warnf("launch refresh failed: %v", err)
	}
	launchCancel()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "skycast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
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
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "skycast",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, pipe, cache)

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Errorf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}
}
