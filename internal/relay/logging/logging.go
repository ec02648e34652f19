package logging

import (
	"log/slog"
)

// LogFields represents structured logging key/value pairs used by the relay.
type LogFields map[string]any

// ServiceLogger is the minimal logging contract required by relay components.
// It keeps the rest of the codebase independent of the concrete logging
// backend so tests can substitute a recorder.
type ServiceLogger interface {
	With(fields LogFields) ServiceLogger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Warn(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
}

// NewSlogServiceLogger wraps a slog.Logger so it satisfies the ServiceLogger
// interface.
func NewSlogServiceLogger(log *slog.Logger) ServiceLogger {
	if log == nil {
		panic("vlmrelay: slog logger cannot be nil")
	}
	return &slogServiceLogger{inner: log}
}

// NewNopLogger returns a ServiceLogger that discards everything. Intended for
// tests and optional collaborators.
func NewNopLogger() ServiceLogger {
	return nopLogger{}
}

type slogServiceLogger struct {
	inner *slog.Logger
}

func (s *slogServiceLogger) With(fields LogFields) ServiceLogger {
	if len(fields) == 0 {
		return s
	}
	return &slogServiceLogger{inner: s.inner.With(toAttrs(fields)...)}
}

func (s *slogServiceLogger) Debug(msg string, fields LogFields) {
	s.inner.Debug(msg, toAttrs(fields)...)
}

func (s *slogServiceLogger) Info(msg string, fields LogFields) {
	s.inner.Info(msg, toAttrs(fields)...)
}

func (s *slogServiceLogger) Warn(msg string, fields LogFields) {
	s.inner.Warn(msg, toAttrs(fields)...)
}

func (s *slogServiceLogger) Error(msg string, err error, fields LogFields) {
	attrs := toAttrs(fields)
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	s.inner.Error(msg, attrs...)
}

func toAttrs(fields LogFields) []any {
	if len(fields) == 0 {
		return nil
	}
	attrs := make([]any, 0, len(fields))
	for key, value := range fields {
		attrs = append(attrs, slog.Any(key, value))
	}
	return attrs
}

type nopLogger struct{}

func (nopLogger) With(LogFields) ServiceLogger   { return nopLogger{} }
func (nopLogger) Debug(string, LogFields)        {}
func (nopLogger) Info(string, LogFields)         {}
func (nopLogger) Warn(string, LogFields)         {}
func (nopLogger) Error(string, error, LogFields) {}
