package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RotatingWriter writes to one log file per ISO week, starting a
// numbered continuation file when the current one exceeds maxFileSize,
// and deletes files older than the retention period.
type RotatingWriter struct {
	logDir      string
	retention   time.Duration
	maxFileSize int64

	mu          sync.Mutex
	currentFile *os.File
	currentWeek string
	currentSize int64
	sequence    int
	lastCleanup time.Time
}

// NewRotatingWriter creates a rotating writer for logDir.
func NewRotatingWriter(logDir string, retentionWeeks int, maxFileSize int64) *RotatingWriter {
	return &RotatingWriter{
		logDir:      logDir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
	}
}

// weekKey returns the ISO-week key, e.g. 2026-W34.
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func (rw *RotatingWriter) fileName(week string, sequence int) string {
	if sequence == 0 {
		return fmt.Sprintf("app-%s.log", week)
	}
	return fmt.Sprintf("app-%s_%02d.log", week, sequence)
}

// Write implements io.Writer. Rotation happens inline: a new week opens
// a fresh file, a full file opens the next numbered continuation.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	week := weekKey(time.Now())
	switch {
	case rw.currentFile == nil || week != rw.currentWeek:
		rw.sequence = 0
		if err := rw.open(week); err != nil {
			return 0, err
		}
	case rw.maxFileSize > 0 && rw.currentSize+int64(len(p)) > rw.maxFileSize:
		rw.sequence++
		if err := rw.open(week); err != nil {
			return 0, err
		}
	}

	n, err := rw.currentFile.Write(p)
	rw.currentSize += int64(n)

	if time.Since(rw.lastCleanup) > 24*time.Hour {
		rw.lastCleanup = time.Now()
		go rw.cleanupOldLogs()
	}

	return n, err
}

// open switches the current file (caller must hold the lock).
func (rw *RotatingWriter) open(week string) error {
	if rw.currentFile != nil {
		if err := rw.currentFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file during rotation: %v\n", err)
		}
	}

	path := filepath.Join(rw.logDir, rw.fileName(week, rw.sequence))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	rw.currentFile = file
	rw.currentWeek = week
	rw.currentSize = 0
	if info, err := file.Stat(); err == nil {
		rw.currentSize = info.Size()
	}

	return nil
}

// cleanupOldLogs removes log files older than the retention period.
// Errors are reported to the console to avoid logging recursion.
func (rw *RotatingWriter) cleanupOldLogs() {
	entries, err := os.ReadDir(rw.logDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list log directory: %v\n", err)
		return
	}

	cutoff := time.Now().Add(-rw.retention)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "app-") || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(rw.logDir, entry.Name())); err != nil {
				fmt.Fprintf(os.Stderr, "failed to remove old log file %s: %v\n", entry.Name(), err)
			}
		}
	}
}

// Close closes the current log file.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.currentFile == nil {
		return nil
	}
	err := rw.currentFile.Close()
	rw.currentFile = nil
	return err
}

// SetupLogger configures slog to log text to the console and JSON to
// rotating weekly files. When the log directory cannot be created the
// console logger alone is returned.
func SetupLogger(logDir string, retentionWeeks int, maxFileSize int64, level slog.Level) (*slog.Logger, *RotatingWriter) {
	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})

	if err := os.MkdirAll(logDir, 0755); err != nil {
		fallback := slog.New(consoleHandler)
		fallback.Error("Failed to create logs directory, logging to console only", "error", err)
		return fallback, nil
	}

	writer := NewRotatingWriter(logDir, retentionWeeks, maxFileSize)
	fileHandler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level})

	return slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}}), writer
}

// multiHandler fans one record out to several handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
