// Package logger configures zerolog for cartd.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var logger = New(os.Stderr, "info", "console")

// New builds a logger writing to w. format is "console" or "json".
func New(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := w
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Init replaces the package logger.
func Init(level, format string) {
	logger = New(os.Stderr, level, format)
}

// For returns a child logger tagged with component.
func For(component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// Nop discards everything; handy in tests.
func Nop() zerolog.Logger { return zerolog.Nop() }

func Warnf(format string, args ...interface{}) {
	logger.Warn().Msgf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	logger.Error().Msgf(format, args...)
}
