// Package logging defines the injected logging seam used throughout
// the proxy, grounded on the teacher's infrastructure/logging.LogLogger
// wrapping the standard log package behind an application-level
// interface rather than calling log.Printf directly from business code.
package logging

import "log"

// Logger is the minimal logging seam every component depends on
// instead of the global log package.
type Logger interface {
	Printf(format string, v ...any)
}

// StdLogger is the default Logger, backed by the standard library's
// log package.
type StdLogger struct{}

// NewStdLogger returns the default log-backed Logger.
func NewStdLogger() Logger {
	return &StdLogger{}
}

func (StdLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}
