// Package logger wraps log/slog behind a small interface so the rest of
// Ardiex logs through Debug/Info/Warn/Error/Time without depending on slog
// directly, plus a StartOperation helper for timing a round or restore.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger is the logging surface every Ardiex package depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Time(msg string, args ...any)

	StartOperation(name string) OperationLogger
}

// OperationLogger tracks elapsed time for one named, possibly long-running
// operation (a backup round, a restore) until it Completes or Fails.
type OperationLogger interface {
	Update(msg string, args ...any)
	Complete(msg string, args ...any)
	Fail(msg string, args ...any)
}

type logger struct {
	slog *slog.Logger
}

type operationLogger struct {
	name      string
	startTime time.Time
	parent    *logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(format string, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// New builds a Logger writing to stdout at the given level ("debug", "info",
// "warn", "error") in either "text" or "json" format.
func New(level, format string) Logger {
	return &logger{slog: slog.New(newHandler(format, os.Stdout, parseLevel(level)))}
}

// FileLogger builds a Logger that writes to both stdout and filename
// (appending). The CLI's --audit-log flag does not use it; that flag feeds
// the validator's separate audit sink.
func FileLogger(level, format, filename string) (Logger, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	w := io.MultiWriter(os.Stdout, file)
	return &logger{slog: slog.New(newHandler(format, w, parseLevel(level)))}, nil
}

func (l *logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

func (l *logger) Time(msg string, args ...any) {
	l.slog.Info("[TIME] "+msg, args...)
}

func (l *logger) StartOperation(name string) OperationLogger {
	return &operationLogger{name: name, startTime: time.Now(), parent: l}
}

func (ol *operationLogger) Update(msg string, args ...any) {
	ol.parent.Info(fmt.Sprintf("[%s] %s", ol.name, msg),
		append(args, "elapsed", time.Since(ol.startTime).String())...)
}

func (ol *operationLogger) Complete(msg string, args ...any) {
	ol.parent.Info(fmt.Sprintf("[%s] COMPLETED: %s", ol.name, msg),
		append(args, "duration", formatDuration(time.Since(ol.startTime)))...)
}

func (ol *operationLogger) Fail(msg string, args ...any) {
	ol.parent.Error(fmt.Sprintf("[%s] FAILED: %s", ol.name, msg),
		append(args, "duration", formatDuration(time.Since(ol.startTime)))...)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm %ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	}
}
