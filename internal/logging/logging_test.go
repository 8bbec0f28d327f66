package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_JSONLogger(t *testing.T) {
	log, _, err := New(DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, log)
	log.Info("hello")
	log.Sync()
}

func TestNew_ConsoleLogger(t *testing.T) {
	opts := DefaultOptions()
	opts.Format = "console"
	opts.Level = "debug"
	log, _, err := New(opts)
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestNew_FileSink(t *testing.T) {
	opts := DefaultOptions()
	opts.FilePath = filepath.Join(t.TempDir(), "app.log")
	log, _, err := New(opts)
	require.NoError(t, err)
	log.Info("to file")
	log.Sync()
}

func TestNew_AtomicLevelAdjustsAtRuntime(t *testing.T) {
	log, level, err := New(DefaultOptions())
	require.NoError(t, err)

	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	level.SetLevel(zapcore.DebugLevel)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	opts := DefaultOptions()
	opts.Level = "shouty"
	_, _, err := New(opts)
	assert.Error(t, err)
}

func TestNew_InvalidFormat(t *testing.T) {
	opts := DefaultOptions()
	opts.Format = "xml"
	_, _, err := New(opts)
	assert.Error(t, err)
}
