package utilities

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_DEV", "1")
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Dev)
	assert.Equal(t, "debug", cfg.Level)

	t.Setenv("LOG_DEV", "false")
	cfg, err = ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Level)
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, levelFromString("warning"))
	assert.Equal(t, zapcore.ErrorLevel, levelFromString("error"))
	assert.Equal(t, zapcore.InfoLevel, levelFromString("loud"))
}

func TestInitWithFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "shift.log")
	lg, err := Init(Config{Level: "info", File: file, MaxAge: 24 * time.Hour})
	require.NoError(t, err)
	lg.Info("hello")
	_ = lg.Sync()
}
