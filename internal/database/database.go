package database

import (
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"beaconly/internal/config"
	"beaconly/internal/events"
)

// Manager owns the process-wide database handle. The connection is created
// lazily on first use and closed explicitly on shutdown.
type Manager struct {
	cfg    *config.Config
	logger *slog.Logger

	mu sync.Mutex
	db *gorm.DB
}

// NewManager creates a database manager for the configured Postgres backend.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logger}
}

// NewManagerWithDB wraps an existing gorm connection; intended for tests.
func NewManagerWithDB(cfg *config.Config, logger *slog.Logger, db *gorm.DB) *Manager {
	return &Manager{cfg: cfg, logger: logger, db: db}
}

// Connect opens the database connection if it is not open yet.
func (m *Manager) Connect() (*gorm.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return m.db, nil
	}

	db, err := gorm.Open(postgres.Open(m.cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(m.cfg.GetMaxOpenConns())
	sqlDB.SetMaxIdleConns(m.cfg.GetMaxIdleConns())

	m.db = db
	m.logger.Info("Database connection established")
	return m.db, nil
}

// GetConnection returns the current connection, or nil when not connected.
func (m *Manager) GetConnection() *gorm.DB {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db
}

// Migrate creates the event tables and their secondary indexes if absent.
func (m *Manager) Migrate() error {
	db, err := m.Connect()
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			&events.Event{},
			&events.PageView{},
			&events.CustomEvent{},
		)
	})
	if err != nil {
		m.logger.Error("Failed to migrate database", slog.Any("error", err))
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.logger.Info("Database migration completed successfully")
	return nil
}

// Close shuts down the underlying connection pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	m.db = nil
	return sqlDB.Close()
}
