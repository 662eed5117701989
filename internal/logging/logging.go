// Package logging provides structured JSON logging for Tide.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with additional context fields.
type Logger struct {
	*slog.Logger
}

type contextKey string

const (
	tableKey     contextKey = "table"
	operationKey contextKey = "operation"
)

// New creates a new Logger with JSON output.
func New() *Logger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a new Logger with JSON output to the provided writer.
func NewWithWriter(w io.Writer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &Logger{Logger: slog.New(handler)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// WithTable returns a logger with the table name attached.
func (l *Logger) WithTable(table string) *Logger {
	if table == "" {
		return l
	}
	return &Logger{Logger: l.Logger.With(slog.String("table", table))}
}

// WithOperation returns a logger with the operation name attached.
func (l *Logger) WithOperation(op string) *Logger {
	if op == "" {
		return l
	}
	return &Logger{Logger: l.Logger.With(slog.String("operation", op))}
}

// WithContext returns a logger with context values attached.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger

	if table, ok := ctx.Value(tableKey).(string); ok && table != "" {
		logger = logger.With(slog.String("table", table))
	}
	if op, ok := ctx.Value(operationKey).(string); ok && op != "" {
		logger = logger.With(slog.String("operation", op))
	}

	return &Logger{Logger: logger}
}

// With returns a new logger with additional attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ContextWithTable adds a table name to the context.
func ContextWithTable(ctx context.Context, table string) context.Context {
	return context.WithValue(ctx, tableKey, table)
}

// ContextWithOperation adds an operation name to the context.
func ContextWithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey, op)
}
