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

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	output := cfg.Output
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

// ParseLevel converts a LogLevel to a zerolog.Level. Unknown values map to info.
func ParseLevel(level LogLevel) zerolog.Level {
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
// Debug: request flow and internal state
//   - Outgoing requests (method, path, request_id)
//   - Pagination progress (page, items)
//
// Info: normal operation events
//   - Poll summaries (event, events emitted, watermark)
//   - CLI startup and scheduled runs
//
// Warn: conditions that don't prevent operation
//   - 429 retries and backoff
//   - Rate limit throttling
//   - Non-2xx responses
//   - Skipped policy acknowledgment sub-fetches
//   - Failed action items under continue-on-fail
//
// Error: conditions requiring attention
//   - Poll strategy failures (converted to zero events)
//   - Exhausted retries
//   - Watermark store failures
//
// Context Fields:
//   - component: drata-client, pagination, poll, watermark, ratelimit, node, cli
//   - method, path, status: HTTP request attributes
//   - request_id: X-Request-ID sent with the request
//   - error_class: client, server, rate_limit, network
//   - event: poll event type
//   - watermark: last poll timestamp
//   - attempt, backoff: retry attempt and wait
