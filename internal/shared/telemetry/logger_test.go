package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Info("document.status", map[string]any{
		"document_id":       "doc-1",
		"status_transition": "processing->ready",
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &payload))
	assert.Equal(t, "info", payload["level"])
	assert.Equal(t, "document.status", payload["msg"])
	assert.Equal(t, "doc-1", payload["document_id"])
	assert.Equal(t, "processing->ready", payload["status_transition"])
	assert.NotEmpty(t, payload["ts"])
}

func TestSetLevelFiltersInfo(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()
	SetLevel("error")
	defer SetLevel("info")

	Info("ignored", nil)
	Error("kept", map[string]any{"err": "boom"})

	out := buf.String()
	assert.NotContains(t, out, "ignored")
	assert.Contains(t, out, `"level":"error"`)
}
