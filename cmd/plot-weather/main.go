package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	httpapi "github.com/i474232898/plot-weather/internal/api/http"
	"github.com/i474232898/plot-weather/internal/chart"
	"github.com/i474232898/plot-weather/internal/config"
	"github.com/i474232898/plot-weather/internal/scheduler"
	"github.com/i474232898/plot-weather/internal/store"
	"github.com/i474232898/plot-weather/internal/weather"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	backend, err := openBackend(cfg)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.StoreBackend, err)
	}

	// Retries, backoff and circuit breaker around every store call.
	resilient := store.NewResilient(cfg.StoreBackend, backend, store.BackoffConfig{
		MaxRetries:      cfg.BreakerMaxRetries,
		InitialInterval: cfg.BreakerInitialInterval,
		MaxInterval:     cfg.BreakerMaxInterval,
	})
	defer resilient.Close()

	service := weather.NewService(resilient, resilient, weather.Options{
		Location: cfg.Location,
		Debug:    cfg.Debug,
	})

	// Periodic store health check.
	sched := scheduler.New(resilient, cfg.HealthInterval, cfg.HTTPTimeout)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "plot-weather",
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTPTimeout,
		WriteTimeout:          cfg.HTTPTimeout,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		status := sched.Status()
		code := fiber.StatusOK
		if !status.Healthy {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"service": "plot-weather",
			"store":   cfg.StoreBackend,
			"breaker": resilient.State().String(),
			"health":  status,
		})
	})

	httpapi.RegisterRoutes(app, service, chart.NewRenderer(cfg.WeekdayLang), httpapi.Options{
		PhoneTokenHeader:     cfg.PhoneTokenHeader,
		PhoneToken:           cfg.PhoneToken,
		PhoneImageSizeHeader: cfg.PhoneImageSizeHeader,
		Timeout:              cfg.HTTPTimeout,
		Debug:                cfg.Debug,
		Limiter:              rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: plot-weather listening on :%s (%s store, %s)", cfg.Port, cfg.StoreBackend, cfg.Location)

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

func openBackend(cfg *config.AppConfig) (weather.Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		return store.NewSQLiteStore(cfg.SQLitePath, cfg.Location, true)
	case config.BackendMemory:
		log.Printf("WARN: using the in-memory store; it starts empty")
		return store.NewMemoryStore(cfg.Location), nil
	default:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return store.NewPostgresStore(ctx, store.PostgresConfig{
			DSN:             cfg.DatabaseDSN,
			MaxConns:        int32(cfg.DBMaxConns),
			MinConns:        int32(cfg.DBMinConns),
			MaxConnLifetime: time.Hour,
		}, cfg.Location)
	}
}
