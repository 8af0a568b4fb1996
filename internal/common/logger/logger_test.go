package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, parseLevel("debug"))
	assert.Equal(t, WARNING, parseLevel(" warn "))
	assert.Equal(t, ERROR, parseLevel("ERROR"))
	assert.Equal(t, INFO, parseLevel("nonsense"))
}

func TestEntryIncludesSortedFieldsAndTraceID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "chat", "DEBUG")

	ctx := ContextWithTraceID(context.Background(), "abc123")
	log.WithFields(ctx, Fields{"user_id": "u1", "chat_id": "c1"}).Info("joined")

	out := buf.String()
	assert.Contains(t, out, "[INFO] [chat]")
	assert.Contains(t, out, "[trace_id=abc123 chat_id=c1 user_id=u1]")
	assert.Contains(t, out, "joined")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "", "WARN")

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
