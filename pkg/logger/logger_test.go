package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestInit_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sfincsrun.log")
	cfg := DefaultConfig("sfincsrun")
	cfg.Encoding = "json"
	cfg.OutputPath = path
	cfg.Level = "warn"

	l, err := Init(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = Init(DefaultConfig("sfincsrun")) })
	assert.Same(t, l, Get())

	WithFields(zap.String("run_id", "r1")).Info("dropped below level")
	Get().Warn("Backend probe failed", zap.String("backend", "docker"))
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped below level")
	assert.Contains(t, string(data), `"message":"Backend probe failed"`)
	assert.Contains(t, string(data), `"service":"sfincsrun"`)
	assert.Contains(t, string(data), `"backend":"docker"`)
}
