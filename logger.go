package quicrx

//
// Logging
//

import (
	apexlog "github.com/apex/log"
)

// Logger is the logger used throughout the receive pipeline and the FEC
// sublayer. The zero value of [apexLogger] implements it using the
// package-level default logger of github.com/apex/log, the same library
// every cmd/ binary of the teacher framework this package is modeled on
// uses for its own CLI output.
type Logger interface {
	// Debugf formats and emits a debug message.
	Debugf(format string, v ...any)

	// Debug emits a debug message.
	Debug(message string)

	// Infof formats and emits an informational message.
	Infof(format string, v ...any)

	// Info emits an informational message.
	Info(message string)

	// Warnf formats and emits a warning message.
	Warnf(format string, v ...any)

	// Warn emits a warning message.
	Warn(message string)
}

// apexLogger adapts github.com/apex/log to [Logger].
type apexLogger struct{}

// NewApexLogger returns a [Logger] backed by the apex/log package-level
// logger. This is the default logger used by [EndpointConfig] when no
// other [Logger] is configured.
func NewApexLogger() Logger {
	return &apexLogger{}
}

var _ Logger = &apexLogger{}

func (*apexLogger) Debugf(format string, v ...any) { apexlog.Debugf(format, v...) }
func (*apexLogger) Debug(message string)           { apexlog.Debug(message) }
func (*apexLogger) Infof(format string, v ...any)  { apexlog.Infof(format, v...) }
func (*apexLogger) Info(message string)            { apexlog.Info(message) }
func (*apexLogger) Warnf(format string, v ...any)  { apexlog.Warnf(format, v...) }
func (*apexLogger) Warn(message string)            { apexlog.Warn(message) }
