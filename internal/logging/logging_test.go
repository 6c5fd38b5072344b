package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected zapcore.Level
	}{
		{"debug lowercase", "debug", zapcore.DebugLevel},
		{"debug uppercase", "DEBUG", zapcore.DebugLevel},
		{"info lowercase", "info", zapcore.InfoLevel},
		{"warn lowercase", "warn", zapcore.WarnLevel},
		{"warning lowercase", "warning", zapcore.WarnLevel},
		{"error mixed case", "Error", zapcore.ErrorLevel},
		{"unknown defaults to info", "verbose", zapcore.InfoLevel},
		{"empty defaults to info", "", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.level))
		})
	}
}

func TestValidLevel(t *testing.T) {
	assert.True(t, ValidLevel("WARNING"))
	assert.True(t, ValidLevel("debug"))
	assert.False(t, ValidLevel(""))
	assert.False(t, ValidLevel("trace"))
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"json format default", "info", ""},
		{"json format explicit", "debug", "json"},
		{"console format", "warn", "console"},
		{"console format uppercase", "error", "CONSOLE"},
		{"plain format", "debug", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.format)
			require.NoError(t, err)
			require.NotNil(t, logger)
			assert.True(t, logger.Core().Enabled(ParseLevel(tt.level)))
		})
	}
}

func TestNewLogger_UnknownFormat(t *testing.T) {
	_, err := NewLogger("info", "xml")
	assert.Error(t, err)
}

func TestNewLogger_FiltersBelowLevel(t *testing.T) {
	logger, err := NewLogger("warn", "json")
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
}
