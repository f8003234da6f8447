// Package logger builds the zerolog loggers shared by the cession binaries.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration
type Config struct {
	Level   string    // debug, info, warn, error; anything else means info
	Pretty  bool      // Human-readable console output instead of JSON
	Output  io.Writer // Defaults to stdout
	Service string    // Tags every entry when set, e.g. "cession-server"
}

// parseLevel maps a configured level name to zerolog, defaulting to info
func parseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return level
}

// New creates a structured logger and applies its level globally
func New(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Output != nil {
		output = cfg.Output
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(output).With().Timestamp().Caller()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	return ctx.Logger()
}

// SetGlobalLogger makes l the logger behind zerolog/log
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
