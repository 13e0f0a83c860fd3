package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
}

func TestProductionConfig(t *testing.T) {
	cfg := ProductionConfig()
	assert.Equal(t, "json", cfg.Format)
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.log")
	cfg := ProductionConfig()
	cfg.Output = path

	log, err := New(cfg)
	require.NoError(t, err)
	log.Info("feed fetched", zap.Int("bytes", 42))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"feed fetched"`)
	assert.Contains(t, string(data), `"bytes":42`)
}

func TestNew_BadFileOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = filepath.Join(t.TempDir(), "missing", "dir", "x.log")

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNew_TeesExtraCores(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	cfg := DefaultConfig()
	cfg.Output = "stderr"

	log, err := New(cfg, core)
	require.NoError(t, err)
	log.Info("hello")

	assert.Equal(t, 1, recorded.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("nonsense"))
}

func TestNewCapture(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	parent := zap.New(core)

	var buf bytes.Buffer
	log := NewCapture(parent, &buf)
	log.Info("login succeeded", zap.Int("page", 1))
	log.Debug("not captured")

	assert.Contains(t, buf.String(), "login succeeded")
	assert.Contains(t, buf.String(), `"page": 1`)
	assert.NotContains(t, buf.String(), "not captured")
	assert.Equal(t, 2, recorded.Len())
}

func TestNewCapture_WithoutParent(t *testing.T) {
	var buf bytes.Buffer
	NewCapture(nil, &buf).Warn("page skipped")
	assert.Contains(t, buf.String(), "WARN")
}

func TestContextLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	ctx = WithRunID(ctx, "run-1")
	ctx = WithSupplierID(ctx, "scoop")
	ctx = WithRequestID(ctx, "req-9")

	L(ctx).Info("supplier started")

	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "scoop", fields["supplier_id"])
	assert.Equal(t, "req-9", fields["request_id"])
	assert.NotContains(t, fields, "trace_id")
}

func TestFromContext_Nop(t *testing.T) {
	log := FromContext(context.Background())
	require.NotNil(t, log)
	log.Info("dropped")
	assert.Empty(t, GetRunID(context.Background()))
}
