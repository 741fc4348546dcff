package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avmarkin/ledgersvc/internal/logger"
)

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer

	logg := logger.NewLogger(
		logger.WithFormat(logger.LogFormatJSON),
		logger.WithWriter(&buf),
	)

	logg.Info("ledger ready", slog.String("component", "test"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "ledger ready", record["msg"])
	assert.Equal(t, "test", record["component"])
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer

	logg := logger.NewLogger(
		logger.WithFormat(logger.LogFormatText),
		logger.WithWriter(&buf),
	)

	logg.Info("ledger ready")

	assert.True(t, strings.Contains(buf.String(), "msg=\"ledger ready\""))
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logg := logger.NewLogger(
		logger.WithLevel(slog.LevelWarn),
		logger.WithWriter(&buf),
	)

	logg.Info("filtered out")
	assert.Zero(t, buf.Len())

	logg.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"Error", slog.LevelError},
	}

	for _, tt := range tests {
		level, err := logger.ParseLogLevel(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, level)
	}

	_, err := logger.ParseLogLevel("verbose")
	assert.Error(t, err)
}
