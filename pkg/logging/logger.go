// Package logging configures the process-wide zerolog logger.
//
// Components derive their logger with NewLogger (or log.With) after Setup has
// run, so Setup belongs at the top of main.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
	// LevelDisabled silences all output.
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Service is added to every entry when set.
	Service string

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Service: "univctl",
		Output:  os.Stderr,
	}
}

// ParseLevel validates a level name. "warning" is accepted for warn.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "disabled", "off":
		return LevelDisabled, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

// zerologLevel maps unknown levels to info.
func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelDisabled:
		return zerolog.Disabled
	default:
		if l, err := ParseLevel(string(level)); err == nil && l != LevelInfo {
			return zerologLevel(l)
		}
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: page fetch decisions (ignored RequestMore, stale results), cache
// hits and revalidation, limiter waits, bus deliveries.
//
// Info: logins and logouts, entity mutations, completed page fetches,
// 304 reuse.
//
// Warn: forced logout after 403, retries, cache failures that fall back to
// the network, rate limit pauses.
//
// Error: failed page fetches, exhausted retries, session store failures.
//
// Common fields: component, screen, operation, page, status_code, duration,
// error_class, request_id.
