// logging.go: Pluggable logging interface for the plugin host
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"sync"
)

// Logger defines the pluggable logging interface for the plugin host.
//
// The interface lets callers integrate any logging framework (slog, zap,
// logrus, custom sinks) without adding a concrete logging dependency to the
// library. Every component in this package takes a Logger; passing nil to a
// constructor yields a silent NoOpLogger.
//
// Structured args are flat key-value pairs:
//
//	logger.Warn("duplicate plugin skipped",
//	    "plugin_id", meta.PluginID,
//	    "version", meta.Version)
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, args ...any)

	// Info logs an info message with optional key-value pairs
	Info(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs
	Warn(msg string, args ...any)

	// Error logs an error message with optional key-value pairs
	Error(msg string, args ...any)

	// With returns a new logger carrying persistent context key-value pairs
	With(args ...any) Logger
}

// NoOpLogger provides a silent logger implementation for minimal setups and
// tests that do not assert on log output.
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-operation logger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Debug implements Logger interface (no-op)
func (n *NoOpLogger) Debug(msg string, args ...any) {}

// Info implements Logger interface (no-op)
func (n *NoOpLogger) Info(msg string, args ...any) {}

// Warn implements Logger interface (no-op)
func (n *NoOpLogger) Warn(msg string, args ...any) {}

// Error implements Logger interface (no-op)
func (n *NoOpLogger) Error(msg string, args ...any) {}

// With implements Logger interface (no-op)
func (n *NoOpLogger) With(args ...any) Logger {
	return n // Stateless, same instance is fine
}

// DefaultLogger returns the logger used when a caller passes nil.
func DefaultLogger() Logger {
	return NewNoOpLogger()
}

// ensureLogger normalizes optional logger arguments.
func ensureLogger(logger Logger) Logger {
	if logger == nil {
		return DefaultLogger()
	}
	return logger
}

// TestLogger captures log messages so tests can assert on them.
type TestLogger struct {
	mu       sync.RWMutex
	Messages []TestLogMessage
}

// TestLogMessage represents a captured log message for testing.
type TestLogMessage struct {
	Level   string
	Message string
	Args    []any
}

// NewTestLogger creates a new capturing logger.
func NewTestLogger() *TestLogger {
	return &TestLogger{
		Messages: make([]TestLogMessage, 0),
	}
}

func (t *TestLogger) append(level, msg string, args []any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = append(t.Messages, TestLogMessage{
		Level:   level,
		Message: msg,
		Args:    args,
	})
}

// Debug implements Logger interface (captures message)
func (t *TestLogger) Debug(msg string, args ...any) { t.append("DEBUG", msg, args) }

// Info implements Logger interface (captures message)
func (t *TestLogger) Info(msg string, args ...any) { t.append("INFO", msg, args) }

// Warn implements Logger interface (captures message)
func (t *TestLogger) Warn(msg string, args ...any) { t.append("WARN", msg, args) }

// Error implements Logger interface (captures message)
func (t *TestLogger) Error(msg string, args ...any) { t.append("ERROR", msg, args) }

// With implements Logger interface. Context chaining is not needed for test
// assertions, so the receiver is returned unchanged and keeps capturing.
func (t *TestLogger) With(args ...any) Logger {
	return t
}

// HasMessage checks if the logger captured a message with the given level and text.
func (t *TestLogger) HasMessage(level, message string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, msg := range t.Messages {
		if msg.Level == level && msg.Message == message {
			return true
		}
	}
	return false
}

// Clear removes all captured messages.
func (t *TestLogger) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = t.Messages[:0]
}
