// Package logger wraps github.com/charmbracelet/log behind a small
// context-carried interface so every subsystem logs through the same
// sink without importing charmbracelet directly.
package logger

import (
	"context"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// LogLevel is the severity of a log entry.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	DisabledLevel
)

// ToCharmlogLevel maps LogLevel onto charmbracelet/log's level scale.
func (l LogLevel) ToCharmlogLevel() charmlog.Level {
	switch l {
	case DebugLevel:
		return charmlog.DebugLevel
	case InfoLevel:
		return charmlog.InfoLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	case DisabledLevel:
		return charmlog.Level(1000)
	default:
		return charmlog.InfoLevel
	}
}

// Logger is the subset of charmlog.Logger used across the codebase.
type Logger interface {
	Debug(msg any, kv ...any)
	Info(msg any, kv ...any)
	Warn(msg any, kv ...any)
	Error(msg any, kv ...any)
	With(kv ...any) *charmlog.Logger
}

type loggerCtxKey struct{}

// LoggerCtxKey is the context key under which a Logger is stored.
var LoggerCtxKey = loggerCtxKey{}

// New builds a charmlog.Logger writing to w at the given level.
func New(w io.Writer, level LogLevel) *charmlog.Logger {
	l := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		Level:           level.ToCharmlogLevel(),
	})
	return l
}

// Default returns a logger writing to stderr at InfoLevel.
func Default() *charmlog.Logger {
	return New(os.Stderr, InfoLevel)
}

// ContextWithLogger returns a new context carrying l.
func ContextWithLogger(ctx context.Context, l *charmlog.Logger) context.Context {
	return context.WithValue(ctx, LoggerCtxKey, l)
}

// FromContext returns the logger stored in ctx, or Default() if none was set.
func FromContext(ctx context.Context) *charmlog.Logger {
	if l, ok := ctx.Value(LoggerCtxKey).(*charmlog.Logger); ok && l != nil {
		return l
	}
	return Default()
}
