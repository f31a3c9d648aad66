// File: api/logger.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "log/slog"

// Logger is the interface for structured logging.
// It is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DefaultLogger returns slog.Default().
func DefaultLogger() Logger {
	return slog.Default()
}
