package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("decoder", &buf, "info").With("run_id", "r1")
	l.Debugw("dropped", map[string]any{"action": 3})
	l.Infof("decoded %d actions", 7)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug records are filtered at info level")
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "decoder", rec["component"])
	assert.Equal(t, "r1", rec["run_id"])
	assert.Equal(t, "decoded 7 actions", rec["message"])
	assert.Equal(t, "info", rec["level"])
}

func TestNopLoggerSatisfiesLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.Debugw("x", nil)
}
