package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize_SilentWithoutLevel(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")

	require.NoError(t, Initialize(""))
	assert.False(t, GetLogger().Core().Enabled(zapcore.ErrorLevel))
}

func TestInitialize_FromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")

	require.NoError(t, InitializeFromEnv())
	assert.True(t, GetLogger().Core().Enabled(zapcore.WarnLevel))
	assert.False(t, GetLogger().Core().Enabled(zapcore.InfoLevel))
}

func TestInitializeWithOptions_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greeac.log")

	err := InitializeWithOptions(Options{
		Level:  "debug",
		Format: "json",
		File:   &FileOptions{Path: path, MaxSizeMB: 1},
	})
	require.NoError(t, err)
	assert.True(t, GetLogger().Core().Enabled(zapcore.DebugLevel))
	SetLogger(zap.NewNop())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"chatty", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestLogFrame(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	LogFrame("frame", []byte{0x7e, 0x7e, 0x00, 0xaf})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "7E 7E 00 AF", entries[0].ContextMap()["hex"])
	assert.EqualValues(t, 4, entries[0].ContextMap()["length"])
}

func TestLogFrame_SkippedAboveDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	LogFrame("frame", []byte{0x7e})
	assert.Zero(t, logs.Len())
}
