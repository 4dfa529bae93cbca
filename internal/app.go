// Package internal contains core application wiring
package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"beaconly/internal/config"
	"beaconly/internal/database"
	"beaconly/internal/logger"
	"beaconly/internal/pkg/geoip"
)

// Application bundles the long-lived process resources.
type Application struct {
	Config   *config.Config
	Logger   *slog.Logger
	Manager  *database.Manager
	Resolver *geoip.Resolver
	Server   *fiber.App
}

// NewApp creates the application: config, logger, database manager,
// geolocation resolver and HTTP server, with routes mounted.
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig creates the application with the provided config.
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	log := logger.New(cfg)

	manager := database.NewManager(cfg, log)
	if _, err := manager.Connect(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	resolver := geoip.NewResolver(log, cfg.GeoAPIBaseURL, cfg.GeoDBPath)

	server := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: cfg.IsProduction(),
	})
	MountRoutes(server, cfg, log, manager, resolver)

	return &Application{
		Config:   cfg,
		Logger:   log,
		Manager:  manager,
		Resolver: resolver,
		Server:   server,
	}, nil
}

// StartAsync starts the HTTP listener in a background goroutine.
func (a *Application) StartAsync() {
	go func() {
		addr := ":" + a.Config.AppPort
		a.Logger.Info("HTTP server listening", slog.String("addr", addr))
		if err := a.Server.Listen(addr); err != nil {
			a.Logger.Error("HTTP server stopped", slog.Any("error", err))
		}
	}()
}

// Shutdown stops the HTTP server and releases the database and geolocation
// resources.
func (a *Application) Shutdown(ctx context.Context) error {
	if err := a.Server.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	a.Resolver.Close()
	if err := a.Manager.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
