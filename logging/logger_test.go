package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLogger_JSONAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf}).
		WithComponent("a2a").
		WithSession("sess-1", "run-1").
		With("agent", "remote_delegate")

	l.Info("a2a.task.completed", "task_id", "t-1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "a2a.task.completed", entry["msg"])
	assert.Equal(t, "a2a", entry["component"])
	assert.Equal(t, "sess-1", entry["session_id"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "remote_delegate", entry["agent"])
	assert.Equal(t, "t-1", entry["task_id"])
}

func TestStructuredLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "text", Output: &buf})

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Error("kept", "error", "boom")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LogLevelInfo, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
