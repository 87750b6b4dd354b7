// Package logger configures the structured logger shared by the CLI and
// the daemon.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a console logger writing to stderr with RFC3339 timestamps.
func New() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

// Nop returns a disabled logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
