// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`

	// Ingestion authentication: shared secret expected as a bearer token
	// on /ingest and /init.
	MetricsSecret string `mapstructure:"metricssecret"`

	// Database settings
	DatabaseURL          string `mapstructure:"databaseurl"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Geolocation settings. GeoDBPath is optional: when it points at a
	// GeoLite2 City mmdb file, lookups are answered locally instead of
	// calling the HTTP service at GeoAPIBaseURL.
	GeoDBPath     string `mapstructure:"geodbpath"`
	GeoAPIBaseURL string `mapstructure:"geoapibaseurl"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		// Set defaults
		v.SetDefault("appname", "beaconly")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("dbmaxopenconns", 10)
		v.SetDefault("dbmaxidleconns", 5)
		v.SetDefault("geoapibaseurl", "https://ipapi.co")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)

		// Bind environment variables
		v.BindEnv("appname", "BEACONLY_APP_NAME")
		v.BindEnv("appport", "BEACONLY_APP_PORT")
		v.BindEnv("environment", "BEACONLY_ENV")
		v.BindEnv("loglevel", "BEACONLY_LOG_LEVEL")
		v.BindEnv("metricssecret", "BEACONLY_METRICS_SECRET")
		v.BindEnv("databaseurl", "BEACONLY_DATABASE_URL")
		v.BindEnv("dbmaxopenconns", "BEACONLY_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "BEACONLY_DB_MAX_IDLE_CONNS")
		v.BindEnv("geodbpath", "BEACONLY_GEO_DB_PATH")
		v.BindEnv("geoapibaseurl", "BEACONLY_GEO_API_BASE_URL")
		v.BindEnv("logsdir", "BEACONLY_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "BEACONLY_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "BEACONLY_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "BEACONLY_LOGS_MAX_AGE_IN_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.Environment == Production && c.DatabaseURL == "" {
		return fmt.Errorf("BEACONLY_DATABASE_URL is required in production")
	}

	if c.Environment == Production && c.MetricsSecret == "" {
		return fmt.Errorf("BEACONLY_METRICS_SECRET is required in production")
	}

	return nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetMaxOpenConns returns the MaxOpenConns value for the database pool
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}
	return 10
}

// GetMaxIdleConns returns the MaxIdleConns value for the database pool
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}
	return 5
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
