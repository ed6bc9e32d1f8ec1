// Package logging builds the zerolog loggers used across the node.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "MWNODE_LOG_LEVEL"
	EnvLogTimestamp = "MWNODE_LOG_TIMESTAMP"
	EnvLogNoColor   = "MWNODE_LOG_NOCOLOR"
)

// Config controls logger construction. Environment variables override it.
type Config struct {
	App       string
	Level     string
	Timestamp bool
	NoColor   bool
	Out       io.Writer
}

func DefaultConfig(app string) Config {
	return Config{
		App:       app,
		Level:     "info",
		Timestamp: true,
		Out:       os.Stdout,
	}
}

// New builds a console logger and installs it as the global zerolog logger.
func New(cfg Config) zerolog.Logger {
	applyEnvOverrides(&cfg)
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	level, ok := ParseLevel(cfg.Level)
	if !ok {
		level = zerolog.InfoLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        cfg.Out,
		TimeFormat: time.RFC3339,
		NoColor:    cfg.NoColor,
	}
	ctx := zerolog.New(output).Level(level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.App != "" {
		ctx = ctx.Str("app", cfg.App)
	}
	logger := ctx.Logger()
	log.Logger = logger
	return logger
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv(EnvLogLevel); strings.TrimSpace(raw) != "" {
		cfg.Level = raw
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

// ParseLevel maps a level name onto a zerolog level. The second result is
// false for empty or unrecognised names.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
