// Package logging configures the process-wide zerolog logger for
// high-throughput structured logging across every SOAR component.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a component-scoped logger. component is attached to every
// line so multi-process deployments (one binary, several subcommands) can
// be told apart in aggregated logs.
func New(component string, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var out = os.Stderr
	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	if isatty := os.Getenv("SOAR_LOG_JSON"); isatty != "" {
		return zerolog.New(out).Level(level).With().Timestamp().Str("component", component).Logger()
	}
	return zerolog.New(writer).Level(level).With().Timestamp().Str("component", component).Logger()
}
