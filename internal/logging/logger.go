// Package logging provides structured logging for feedline using zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger. Components derive child loggers from it via
// Component and WithFeed rather than using it directly.
var Logger zerolog.Logger

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string

	// Format is the output format (json, console).
	Format string

	// File, when set, appends logs to the given path instead of stderr.
	File string

	// Output overrides the destination, used in tests. Takes precedence
	// over File.
	Output io.Writer

	// EnableCaller adds caller information to logs.
	EnableCaller bool
}

// Init initializes the global logger. Called once from main after config
// loading; before that the package-level default (info, console, stderr)
// applies.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if output == nil {
		output = io.Writer(os.Stderr)
		if cfg.File != "" {
			if f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
				output = f
			}
		}
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
		}
	}

	builder := zerolog.New(output).With().Timestamp()
	if cfg.EnableCaller {
		builder = builder.Caller()
	}
	Logger = builder.Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component derives a logger tagged with the owning component.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// WithFeed derives a logger tagged with a feed's room and filter purpose.
func WithFeed(roomID string, purpose string) zerolog.Logger {
	return Logger.With().Str("room_id", roomID).Str("purpose", purpose).Logger()
}

func init() {
	Init(Config{Level: "info", Format: "console"})
}
