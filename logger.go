package cqgo

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with cqgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithIndex adds an index name field to the logger.
func (l *Logger) WithIndex(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", name),
	}
}

// LogAdd logs an add operation.
func (l *Logger) LogAdd(ctx context.Context, count int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed",
			"count", count,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "add completed",
			"count", count,
			"duration", duration,
		)
	}
}

// LogRemove logs a remove operation.
func (l *Logger) LogRemove(ctx context.Context, count int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "remove failed",
			"count", count,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "remove completed",
			"count", count,
			"duration", duration,
		)
	}
}

// LogUpdate logs an update operation.
func (l *Logger) LogUpdate(ctx context.Context, removed, added int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed",
			"removed", removed,
			"added", added,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "update completed",
			"removed", removed,
			"added", added,
		)
	}
}

// LogIndexBuild logs building an index over the existing objects.
func (l *Logger) LogIndexBuild(ctx context.Context, name string, objects int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index build failed",
			"index", name,
			"objects", objects,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index built",
			"index", name,
			"objects", objects,
			"duration", duration,
		)
	}
}

// LogIndexDrop logs removing an index.
func (l *Logger) LogIndexDrop(ctx context.Context, name string) {
	l.InfoContext(ctx, "index dropped", "index", name)
}
