package internal

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"beaconly/internal/config"
	"beaconly/internal/database"
	beaconlyhttp "beaconly/internal/http"
	"beaconly/internal/http/middleware"
	"beaconly/internal/pkg/geoip"
)

// MountRoutes wires all HTTP routes onto the fiber app.
func MountRoutes(app *fiber.App, cfg *config.Config, logger *slog.Logger, manager *database.Manager, resolver *geoip.Resolver) {
	app.Use(recover.New())

	ingestHandler := beaconlyhttp.NewIngestHandler(manager, logger, resolver)
	metricsHandler := beaconlyhttp.NewMetricsHandler(manager, logger)
	systemHandler := beaconlyhttp.NewSystemHandler(manager, logger)

	auth := middleware.SharedSecretAuth(cfg.MetricsSecret)

	// Beacons arrive cross-origin from the client sites themselves; the group
	// middleware also answers the OPTIONS preflight.
	ingest := app.Group("/ingest", cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST,PUT,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	ingest.Post("/", auth, ingestHandler.Create)
	ingest.Put("/", auth, ingestHandler.CreateBatch)

	// The dashboard fetches metrics cross-origin; the group middleware also
	// answers the OPTIONS preflight.
	metrics := app.Group("/metrics", cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	metrics.Get("/", metricsHandler.Index)

	app.Get("/init", auth, systemHandler.Init)

	app.Get("/health", systemHandler.Health)
}
