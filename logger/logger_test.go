package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_Should_Write_Json_Lines_To_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l, err := New(Config{Level: "debug", Format: "json", OutputFile: path})
	require.NoError(t, err)

	l.Debug("evicted block", zap.String("block", "[file a, block 1]"))
	l.Info("file manager is initialized")
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "evicted block", entry["msg"])
	assert.Equal(t, "simpledb", entry["service"])
	assert.Equal(t, "[file a, block 1]", entry["block"])
}

func TestNew_Should_Default_To_Info_Level(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l, err := New(Config{Level: "nonsense", OutputFile: path})
	require.NoError(t, err)

	assert.False(t, l.Core().Enabled(zap.DebugLevel))
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
}

func TestNew_Development_Should_Panic_On_DPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	prod, err := New(Config{OutputFile: path})
	require.NoError(t, err)
	assert.NotPanics(t, func() { prod.DPanic("contract violated") })

	dev, err := New(Config{OutputFile: path, Development: true})
	require.NoError(t, err)
	assert.Panics(t, func() { dev.DPanic("contract violated") })
}

func TestNew_Should_Fail_For_Unwritable_File(t *testing.T) {
	_, err := New(Config{OutputFile: filepath.Join(t.TempDir(), "missing", "out.log")})
	assert.Error(t, err)
}
