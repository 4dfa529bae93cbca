// Package testsupport provides shared helpers for package tests: an
// in-memory database with the full schema and a fiber app with all routes
// mounted.
package testsupport

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"beaconly/internal"
	"beaconly/internal/config"
	"beaconly/internal/database"
	"beaconly/internal/events"
	"beaconly/internal/pkg/geoip"
)

// TestSecret is the shared ingestion secret used by test apps.
const TestSecret = "test-secret"

var dbNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// SetupTestDB creates a named in-memory SQLite database with all models
// migrated. cache=shared lets multiple connections within one test see the
// same data.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := dbNameSanitizer.ReplaceAllString(t.Name(), "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&events.Event{},
		&events.PageView{},
		&events.CustomEvent{},
	)
	require.NoError(t, err)

	return db
}

// NewTestConfig returns a config suitable for tests.
func NewTestConfig() *config.Config {
	return &config.Config{
		AppName:       "beaconly",
		AppPort:       "0",
		Environment:   config.Test,
		LogLevel:      config.LogLevelError,
		MetricsSecret: TestSecret,
		// Unroutable: an unexpected lookup fails fast instead of calling
		// the real service.
		GeoAPIBaseURL: "http://127.0.0.1:1",
	}
}

// NewTestLogger returns a logger that discards all output.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestApp builds a fiber app with all routes mounted over db.
func NewTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()
	return NewTestAppWithConfig(t, db, NewTestConfig())
}

// NewTestAppWithConfig builds a fiber app with all routes mounted over db
// using the given config.
func NewTestAppWithConfig(t *testing.T, db *gorm.DB, cfg *config.Config) *fiber.App {
	t.Helper()

	logger := NewTestLogger()
	manager := database.NewManagerWithDB(cfg, logger, db)
	resolver := geoip.NewResolver(logger, cfg.GeoAPIBaseURL, cfg.GeoDBPath)

	app := fiber.New(fiber.Config{AppName: cfg.AppName})
	internal.MountRoutes(app, cfg, logger, manager, resolver)
	return app
}

// CreatePageView inserts a page view row with an explicit creation time.
func CreatePageView(t *testing.T, db *gorm.DB, projectID, path, visitorID string, createdAt time.Time) *events.PageView {
	t.Helper()

	pageView := &events.PageView{
		ProjectID: projectID,
		Path:      path,
		VisitorID: visitorID,
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(pageView).Error)
	return pageView
}

// CreateLocatedPageView inserts a page view row carrying location fields.
func CreateLocatedPageView(t *testing.T, db *gorm.DB, projectID, path, visitorID, city, region, country string, createdAt time.Time) *events.PageView {
	t.Helper()

	pageView := &events.PageView{
		ProjectID: projectID,
		Path:      path,
		VisitorID: visitorID,
		City:      &city,
		Region:    &region,
		Country:   &country,
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(pageView).Error)
	return pageView
}

// CreateCustomEvent inserts a custom event row with an explicit creation time.
func CreateCustomEvent(t *testing.T, db *gorm.DB, projectID, eventName, visitorID string, createdAt time.Time) *events.CustomEvent {
	t.Helper()

	customEvent := &events.CustomEvent{
		ProjectID: projectID,
		EventName: eventName,
		VisitorID: visitorID,
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(customEvent).Error)
	return customEvent
}
