// Package logger builds the application slog.Logger with file rotation.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"beaconly/internal/config"
)

// New creates a JSON slog.Logger writing to stdout and a rotated log file.
// In the test environment the file writer is skipped.
func New(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.LogLevel)

	var w io.Writer = os.Stdout
	if !cfg.IsTest() && cfg.LogsDirectory != "" {
		rotated := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogsDirectory, cfg.AppName+".log"),
			MaxSize:    cfg.LogsMaxSizeInMb,
			MaxBackups: cfg.LogsMaxBackups,
			MaxAge:     cfg.LogsMaxAgeInDays,
		}
		w = io.MultiWriter(os.Stdout, rotated)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", cfg.AppName))
}

func parseLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelInfo:
		return slog.LevelInfo
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
