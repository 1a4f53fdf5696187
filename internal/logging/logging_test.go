package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("info", &buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("uploaded", zap.String("name", "a.pdf"), zap.Int("words", 3))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "uploaded", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "a.pdf", entry["name"])
	assert.EqualValues(t, 3, entry["words"])
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prr.log")
	log, closeFn, err := Open("info", path, nil)
	require.NoError(t, err)
	log.Info("hello")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestOpenWithoutSink(t *testing.T) {
	log, closeFn, err := Open("warn", "", nil)
	require.NoError(t, err)
	assert.NotNil(t, log)
	assert.NoError(t, closeFn())

	_, _, err = Open("nope", "", nil)
	assert.Error(t, err)
}
