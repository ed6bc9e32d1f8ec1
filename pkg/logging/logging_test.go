package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw   string
		level zerolog.Level
		ok    bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, true},
		{" WARNING ", zerolog.WarnLevel, true},
		{"error", zerolog.ErrorLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			level, ok := ParseLevel(tt.raw)
			assert.Equal(t, tt.level, level)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig("wirenode")
	cfg.Out = &buf
	cfg.NoColor = true
	cfg.Level = "warn"

	logger := New(cfg)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "app=wirenode")
}

func TestNewEnvOverride(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogTimestamp, "false")

	var buf bytes.Buffer
	cfg := DefaultConfig("wirenode")
	cfg.Out = &buf
	cfg.NoColor = true

	logger := New(cfg)
	logger.Debug().Msg("details")

	assert.Contains(t, buf.String(), "details")
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}
