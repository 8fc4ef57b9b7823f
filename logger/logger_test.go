package logger

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/saiset-co/sai-cache-admin/types"
)

type staticConfig struct {
	cfg *types.ServiceConfig
}

func (s staticConfig) Load() error                                    { return nil }
func (s staticConfig) GetConfig() *types.ServiceConfig                { return s.cfg }
func (s staticConfig) GetValue(_ string, def interface{}) interface{} { return def }
func (s staticConfig) GetAs(_ string, _ interface{}) error            { return types.ErrConfigNotFound }

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLogLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel("bogus"))
}

func TestNewManagerUnknownType(t *testing.T) {
	cfg := staticConfig{cfg: &types.ServiceConfig{Logger: &types.LoggerConfig{Type: "nope", Level: "info"}}}
	_, err := NewManager(context.Background(), cfg)
	assert.ErrorIs(t, err, types.ErrLoggerTypeUnknown)
}

func TestNewManagerMissingConfig(t *testing.T) {
	_, err := NewManager(context.Background(), staticConfig{cfg: &types.ServiceConfig{}})
	assert.ErrorIs(t, err, types.ErrLoggerConfigInvalid)
}

func TestManagerLifecycle(t *testing.T) {
	cfg := staticConfig{cfg: &types.ServiceConfig{Logger: &types.LoggerConfig{Type: "nop", Level: "info"}}}
	m, err := NewManager(context.Background(), cfg)
	require.NoError(t, err)

	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())
	m.Info("hello", zap.String("k", "v"))
	require.NoError(t, m.Stop())
	assert.ErrorIs(t, m.Stop(), types.ErrServiceIsNotRunning)
}

func TestFileOutput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "admin.log")
	l, err := NewDefaultLogger(&types.LoggerConfig{
		Level:  "info",
		Config: map[string]interface{}{"format": "json", "output": "file", "file": file},
	})
	require.NoError(t, err)
	l.Info("written")
	assert.FileExists(t, file)
}

func TestErrorWithErrStack(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	w := NewZapWrapper(zap.New(core)).(*ZapWrapper)
	var stack bytes.Buffer
	w.stackOutput = &stack

	err := pkgerrors.Wrap(pkgerrors.New("disk full"), "flush filesystem")
	w.ErrorWithErrStack("flush failed", err, zap.String("backend", "filesystem"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "flush failed", entry.Message)
	assert.Equal(t, "flush filesystem: disk full", entry.ContextMap()["error"])
	assert.Equal(t, "disk full", entry.ContextMap()["cause"])
	assert.Contains(t, stack.String(), "ERROR STACK TRACE")

	w.ErrorWithErrStack("no error", nil)
	assert.Equal(t, 2, logs.Len())
}

func TestRegisterLoggerCustomType(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	RegisterLogger("observed", func(config interface{}) (types.Logger, error) {
		return NewZapWrapper(zap.New(core)), nil
	})

	cfg := staticConfig{cfg: &types.ServiceConfig{Logger: &types.LoggerConfig{Type: "observed", Level: "info"}}}
	m, err := NewManager(context.Background(), cfg)
	require.NoError(t, err)

	m.Info("flush requested", zap.String("cache_type", "cas"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "cas", logs.All()[0].ContextMap()["cache_type"])
}
