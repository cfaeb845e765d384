// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Admission waits (tokens, sleep duration)
//   - Per-attempt retry decisions (backoff, error class)
//   - Lookup cache operations (hit/miss, key, TTL)
//
// Info: Normal operation events
//   - Run start and final report
//   - Periodic progress samples (done, throughput, ETA)
//   - Rate recovery steps back toward the baseline
//
// Warn: Warning conditions that don't prevent operation
//   - Rate limit signals and ceiling contractions
//   - Items that exhausted their retry attempts
//   - Lookup cache errors (fallback to direct request)
//
// Error: Error conditions requiring attention
//   - Executor panics
//   - Run interruption
//   - Configuration errors
//
// Context Fields:
//   - item_id: Work item identifier
//   - status: HTTP status code
//   - error_class: Error classification (client, server, rate_limit, network)
//   - rate: Current shared rate ceiling in requests per second
//   - attempt: 1-based attempt number for the current item
//   - eta: Estimated time to completion from the progress sampler
