// Package logging configures zerolog for the crawler.
//
// Setup installs the global logger once at startup; packages then derive
// their own with NewLogger(component) and narrow it per unit of work with
// WithCredential or WithShard.
//
// Levels:
//   - debug: cache hits, single requests and pages, pacing waits
//   - info: phase boundaries, per-shard commits, the run summary
//   - warn: retries, throttling cooldowns, cache fallbacks
//   - error: failed units of work, store failures, bad configuration
//
// Fields: component, client_id, shard, category_id, attribute_id, endpoint,
// status, error_class. API keys are never logged.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a configured level name.
type LogLevel string

// Supported levels.
const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// ServiceName is attached to every log line.
const ServiceName = "catalog-crawler"

var zerologLevels = map[LogLevel]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written.
	Level LogLevel

	// Pretty switches from JSON lines to console output.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level to stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// ParseLevel normalises a level name. Empty means info; "warning" is
// accepted for warn.
func ParseLevel(level string) (LogLevel, error) {
	name := LogLevel(strings.ToLower(strings.TrimSpace(level)))
	switch name {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	}
	if _, ok := zerologLevels[name]; !ok {
		return "", fmt.Errorf("unknown log level %q", level)
	}
	return name, nil
}

// Setup configures the global logger and returns it. Unknown levels fall
// back to info.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))

	var out io.Writer = os.Stderr
	if cfg.Output != nil {
		out = cfg.Output
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	log.Logger = zerolog.New(out).With().
		Timestamp().
		Str("service", ServiceName).
		Logger()
	return log.Logger
}

func zerologLevel(level LogLevel) zerolog.Level {
	name, err := ParseLevel(string(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return zerologLevels[name]
}

// NewLogger derives a logger for component from the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithCredential tags logger with a seller client ID.
func WithCredential(logger zerolog.Logger, clientID string) zerolog.Logger {
	return logger.With().Str("client_id", clientID).Logger()
}

// WithShard tags logger with a client ID and the shard it works on.
func WithShard(logger zerolog.Logger, clientID string, shard int) zerolog.Logger {
	return logger.With().Str("client_id", clientID).Int("shard", shard).Logger()
}
