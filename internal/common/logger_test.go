package common

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLogErrorEmitsErrorAndFields(t *testing.T) {
	buf := captureLogs(t)

	LogError(errors.New("disk full"), "failed to save review session", Fields{"session_id": "abc123"})

	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, "failed to save review session")
	assert.Contains(t, out, `"error":"disk full"`)
	assert.Contains(t, out, `"session_id":"abc123"`)
}

func TestLogInfoEmitsFields(t *testing.T) {
	buf := captureLogs(t)

	LogInfo("Recorded review session", Fields{"score": 96})

	out := buf.String()
	assert.Contains(t, out, `"level":"INFO"`)
	assert.Contains(t, out, "Recorded review session")
	assert.Contains(t, out, `"score":96`)
}

func TestSetupLoggerAcceptsBothFormats(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	require.NoError(t, SetupLogger(slog.LevelDebug, "console"))
	require.NoError(t, SetupLogger(slog.LevelInfo, "json"))
}
