// Package logging wraps slog with a weekly rotating file handler and
// package-level helpers usable before initialization.
package logging

import (
	"log/slog"
	"os"
)

// LoggingService owns the configured logger instance.
type LoggingService struct {
	Logger *slog.Logger
	writer *RotatingWriter
}

// DefaultLoggingService is the process-wide logging service set up by
// InitLogger.
var DefaultLoggingService *LoggingService

// InitLogger initializes the global logger, writing text to the console
// and JSON to rotating weekly files under logDir.
func InitLogger(logDir string, retentionWeeks int, maxFileSize int64, level slog.Level) {
	logger, writer := SetupLogger(logDir, retentionWeeks, maxFileSize, level)
	DefaultLoggingService = &LoggingService{Logger: logger, writer: writer}
	slog.SetDefault(logger)
}

// Close flushes and closes the rotating file writer, if any.
func Close() error {
	if DefaultLoggingService == nil || DefaultLoggingService.writer == nil {
		return nil
	}
	return DefaultLoggingService.writer.Close()
}

// logger returns the configured logger, or a console fallback when the
// service has not been initialized (early startup, tests).
func logger(level slog.Level) *slog.Logger {
	if DefaultLoggingService != nil && DefaultLoggingService.Logger != nil {
		return DefaultLoggingService.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	logger(slog.LevelInfo).Info(msg, args...)
}

func Warn(msg string, args ...any) {
	logger(slog.LevelWarn).Warn(msg, args...)
}

func Error(msg string, args ...any) {
	logger(slog.LevelError).Error(msg, args...)
}

func Debug(msg string, args ...any) {
	logger(slog.LevelDebug).Debug(msg, args...)
}

// ParseLevel maps a config log level string onto a slog.Level,
// defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
