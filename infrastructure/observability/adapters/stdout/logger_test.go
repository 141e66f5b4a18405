package stdout

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(jsonMode bool) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Logger{
		fields: make(map[string]interface{}),
		logger: log.New(&buf, "", 0),
		json:   jsonMode,
	}, &buf
}

func TestTextLogLine(t *testing.T) {
	l, buf := newBufferedLogger(false)
	l.Info("object stored", "key", "a/b.txt", "bytes", 42)

	line := buf.String()
	assert.Contains(t, line, "[INFO] object stored")
	assert.Contains(t, line, "key=a/b.txt")
	assert.Contains(t, line, "bytes=42")
}

func TestJSONLogLine(t *testing.T) {
	l, buf := newBufferedLogger(true)
	l.Error("put failed", "key", "x", "error", errors.New("disk full"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "put failed", entry["message"])
	assert.Equal(t, "x", entry["key"])
	assert.Equal(t, "disk full", entry["error"], "errors log as their message")
	assert.NotEmpty(t, entry["timestamp"])
}

func TestWithFieldsCarriesContext(t *testing.T) {
	l, buf := newBufferedLogger(true)
	child := l.WithFields(map[string]interface{}{"component": "fs_storage"})
	child.Info("ready")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fs_storage", entry["component"])

	// the parent is unaffected
	buf.Reset()
	l.Info("parent")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, has := entry["component"]
	assert.False(t, has)
}

func TestOddFieldCountIgnored(t *testing.T) {
	l, buf := newBufferedLogger(true)
	l.Info("msg", "key1", "v1", "dangling")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "v1", entry["key1"])
	_, has := entry["dangling"]
	assert.False(t, has)
}
