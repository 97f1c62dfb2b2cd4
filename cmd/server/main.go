package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sacco-console/internal/adapters/api"
	"sacco-console/internal/adapters/http/middleware"
	"sacco-console/internal/adapters/http/routes"
	"sacco-console/internal/adapters/http/visitor"
	"sacco-console/internal/adapters/persistence/models"
	"sacco-console/internal/adapters/persistence/repositories"
	"sacco-console/internal/config"
	"sacco-console/internal/core/services"
	"sacco-console/internal/core/session"
	"sacco-console/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "sacco-console/docs" // Swagger docs
)

// @title SACCO Admin Console
// @version 1.0
// @description Browser-facing console for the SACCO financial management API. Sessions are kept server side per visitor.

// @contact.name API Support

// @BasePath /

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.AppMode, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	// Durable storage holds the Token Store, transient storage the pending
	// two-factor and password change data
	transient := session.NewMemoryStorage(cfg.Session.PendingTTL)
	var (
		durable      session.Provider
		db           *gorm.DB
		sessionRepo  *repositories.SessionValueRepository
		memDurable   *session.MemoryStorage
		storageCheck func() error
	)
	switch cfg.Storage.Driver {
	case "mysql":
		db, err = config.ConnectDatabase(cfg, zlog)
		if err != nil {
			zlog.Fatal("failed to connect to database", zap.Error(err))
		}
		defer config.CloseDatabase(db)

		if err := models.AutoMigrate(db); err != nil {
			zlog.Fatal("failed to auto migrate", zap.Error(err))
		}
		zlog.Info("database migration completed")

		sessionRepo = repositories.NewSessionValueRepository(db, cfg.Session.TTL)
		durable = sessionRepo
		storageCheck = func() error { return config.HealthCheck(db) }
	default:
		memDurable = session.NewMemoryStorage(cfg.Session.TTL)
		durable = memDurable
	}

	sealer, err := session.NewSealer(cfg.Session.Secret)
	if err != nil {
		zlog.Fatal("failed to derive sealing key", zap.Error(err))
	}

	events := api.NewEvents()
	events.Subscribe(func(ev api.Event) {
		zlog.Info("session expired", zap.String("visitor", ev.VisitorID))
	})

	registry := visitor.NewRegistry(visitor.Dependencies{
		Config:     cfg,
		Durable:    durable,
		Transient:  transient,
		Sealer:     sealer,
		Events:     events,
		HTTPClient: api.NewHTTPClient(cfg.API.Timeout),
		Logger:     zlog,
	})
	defer registry.Close()

	sessions := fibersession.New(fibersession.Config{
		Expiration:     cfg.Session.TTL,
		KeyLookup:      "cookie:sacco_console_sid",
		CookieDomain:   cfg.Cookie.Domain,
		CookiePath:     "/",
		CookieSecure:   cfg.Cookie.Secure,
		CookieHTTPOnly: true,
		CookieSameSite: cfg.Cookie.SameSite,
		KeyGenerator:   uuid.NewString,
	})

	cronService := services.NewCronService(zlog)
	mustSchedule(zlog, cronService.Every(10*time.Minute, "prune-visitors", func() {
		registry.Prune(cfg.Session.VisitorIdleTTL)
	}))
	mustSchedule(zlog, cronService.Every(5*time.Minute, "sweep-transient", func() {
		transient.Sweep()
		if memDurable != nil {
			memDurable.Sweep()
		}
	}))
	if sessionRepo != nil {
		mustSchedule(zlog, cronService.Every(time.Hour, "purge-session-values", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if n, err := sessionRepo.Purge(ctx); err != nil {
				zlog.Warn("purge session values failed", zap.Error(err))
			} else if n > 0 {
				zlog.Info("purged session values", zap.Int64("rows", n))
			}
		}))
	}
	cronService.Start()
	defer cronService.Stop()

	app := fiber.New(fiber.Config{
		AppName:      "SACCO Admin Console",
		ErrorHandler: middleware.ErrorHandler(zlog),
	})

	middleware.Setup(app, cfg)

	policy := services.NewAccessPolicy(cfg.Access.ProtectedPrefixes)

	routes.Setup(app, routes.Dependencies{
		Config:       cfg,
		Registry:     registry,
		Sessions:     sessions,
		Policy:       policy,
		StorageCheck: storageCheck,
	})

	go gracefulShutdown(app, zlog)

	zlog.Info("server starting",
		zap.String("port", cfg.Port),
		zap.String("mode", cfg.AppMode),
		zap.String("api", cfg.API.BaseURL),
		zap.String("storage", cfg.Storage.Driver),
		zap.Strings("protected", policy.Prefixes()),
	)
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Fatal("failed to start server", zap.Error(err))
	}
}

func mustSchedule(zlog *zap.Logger, err error) {
	if err != nil {
		zlog.Fatal("failed to schedule job", zap.Error(err))
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App, zlog *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zlog.Error("error during shutdown", zap.Error(err))
	}
	zlog.Info("server stopped gracefully")
}
