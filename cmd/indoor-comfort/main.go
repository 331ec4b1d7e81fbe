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

	httpapi "github.com/airsense/indoor-comfort/internal/api/http"
	"github.com/airsense/indoor-comfort/internal/chat"
	"github.com/airsense/indoor-comfort/internal/config"
	"github.com/airsense/indoor-comfort/internal/recommend"
	"github.com/airsense/indoor-comfort/internal/scheduler"
	"github.com/airsense/indoor-comfort/internal/store"
	"github.com/airsense/indoor-comfort/internal/telemetry"
	"github.com/airsense/indoor-comfort/internal/telemetry/sources"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// SQLite-backed append-only store.
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer initCancel()
	if err := st.InitSchema(initCtx); err != nil {
		log.Fatalf("failed to init schema: %v", err)
	}

	// Ingestion pipeline: sensor aggregation plus the two outdoor sources.
	telemetrySvc := telemetry.NewService(st,
		sources.NewSensorClient(httpClient, cfg.SensorAPIURL, cfg.SensorAPIKey),
		sources.NewAirQualityClient(httpClient, cfg.AirQualityAPIURL),
		sources.NewWeatherClient(httpClient, cfg.WeatherAPIURL),
	)

	// Scheduler with the two independent ingestion loops.
	sched := scheduler.New(telemetrySvc, cfg.NodeFetchInterval, cfg.OutdoorFetchInterval, cfg.SchedulerLocation())
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Orchestrators over the remote compute boundaries.
	recommendSvc := recommend.NewService(st,
		recommend.NewInferenceClient(httpClient, cfg.InferenceAPIBase), cfg.InferenceTimeout)
	chatSvc := chat.NewService(st, chat.NewAgentClient(httpClient, cfg.InferenceAPIBase))

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "indoor-comfort",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
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
			"status":  "ok",
			"service": "indoor-comfort",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, st, recommendSvc, chatSvc)

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
