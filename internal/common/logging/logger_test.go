package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, ErrorLevel, ParseLevel("Error"))
	assert.Equal(t, InfoLevel, ParseLevel("garbage"), "unknown levels default to info")
}

func TestZapLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: WarnLevel, Output: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("visible warning")
	logger.Error("visible error", errors.New("boom"))

	output := buf.String()
	assert.NotContains(t, output, "hidden")
	assert.Contains(t, output, "visible warning")
	assert.Contains(t, output, "visible error")
	assert.Contains(t, output, "boom")
}

func TestZapLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: DebugLevel, Output: &buf})
	require.NoError(t, err)

	logger.WithFields(String("component", "cache")).Info("entry stored",
		Int("size", 42), Bool("compressed", true))

	output := buf.String()
	assert.Contains(t, output, "component")
	assert.Contains(t, output, "cache")
	assert.Contains(t, output, "42")
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf})
	require.NoError(t, err)

	SetGlobalLogger(logger)
	t.Cleanup(func() { SetGlobalLogger(NewDefaultLogger()) })

	Info("through the global logger")
	assert.True(t, strings.Contains(buf.String(), "through the global logger"))
}
