package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentiment-dashboard/internal/config"
)

func TestNewLogger_Formats(t *testing.T) {
	text, err := NewLogger(config.LoggingConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	assert.IsType(t, &logrus.TextFormatter{}, text.Formatter)
	assert.Equal(t, logrus.DebugLevel, text.GetLevel())

	js, err := NewLogger(config.LoggingConfig{Level: "warn", Format: "JSON"})
	require.NoError(t, err)
	assert.IsType(t, &logrus.JSONFormatter{}, js.Formatter)
	assert.Equal(t, logrus.WarnLevel, js.GetLevel())
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "loud"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNewLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")
	logger, err := NewLogger(config.LoggingConfig{Level: "info", Format: "json", File: path})
	require.NoError(t, err)

	logger.WithField("request_id", "abc").Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"request_id":"abc"`)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestNewLogger_BadFilePath(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{File: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}
