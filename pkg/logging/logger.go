// Package logging builds the zerolog logger shared by every core component.
package logging

import (
	"os"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// New builds a console-writer logger at the given level. An unrecognized
// level falls back to info and logs a warning so misconfiguration is never
// silent.
func New(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}

	writer := zerolog.ConsoleWriter{
		Out:        colorable.NewColorable(os.Stderr),
		TimeFormat: time.RFC3339,
	}

	logger := zerolog.New(writer).Level(parsed).With().Timestamp().Logger()
	if err != nil && level != "" {
		logger.Warn().Str("configured_level", level).Msg("unrecognized log_level, defaulting to info")
	}
	return logger
}

// Component returns a child logger tagged with the given component name,
// the convention every package in this module follows for its package-level
// logger.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
