package api

import (
	"log/slog"
)

// Logger interface
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	With(args ...interface{}) Logger
}

// slogLogger implements Logger on top of a slog.Logger
type slogLogger struct {
	l *slog.Logger
}

// NewLogger creates a logger tagged with a component name. It writes through
// the slog default logger current at creation time.
func NewLogger(component string) Logger {
	l := slog.Default()
	if component != "" {
		l = l.With("component", component)
	}
	return &slogLogger{l: l}
}

// FromSlog wraps an existing slog.Logger
func FromSlog(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

func (l *slogLogger) Debug(msg string, args ...interface{}) {
	l.l.Debug(msg, args...)
}

func (l *slogLogger) Info(msg string, args ...interface{}) {
	l.l.Info(msg, args...)
}

func (l *slogLogger) Warn(msg string, args ...interface{}) {
	l.l.Warn(msg, args...)
}

func (l *slogLogger) Error(msg string, args ...interface{}) {
	l.l.Error(msg, args...)
}

func (l *slogLogger) With(args ...interface{}) Logger {
	return &slogLogger{l: l.l.With(args...)}
}
