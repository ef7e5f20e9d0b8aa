package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" Warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf, Service: "student-insight"})

	l.Debug("hidden")
	l.Info("hello", "component", "test")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "student-insight", entry["service"])
	assert.Equal(t, "test", entry["component"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Format: ParseFormat("TEXT"), Output: &buf})

	l.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestRequestIDContext(t *testing.T) {
	var buf bytes.Buffer
	base := New(Options{Format: FormatJSON, Output: &buf})

	assert.Equal(t, slog.Default(), FromContext(context.Background()))

	ctx := WithRequestID(context.Background(), base, "req-1")
	FromContext(ctx).Info("scoped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[RequestIDKey])
}
