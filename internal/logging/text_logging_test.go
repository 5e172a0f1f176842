package logging

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	h := NewTextHandler(buf)
	h.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }
	return slog.New(h)
}

func TestTextHandler(t *testing.T) {
	SetLevel(slog.LevelInfo)
	defer SetLevel(slog.LevelInfo)

	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Info("merge started", "sources", 3, "path", "a b")
	logger.With("engine", "2x9Q", "policy", "fail-fast").Warn("skipping failed source", "source", 1)
	logger.Debug("hidden")

	assert.Equal(t,
		"2024/05/01 12:30:00 INFO [main] merge started sources=3 path=\"a b\"\n"+
			"2024/05/01 12:30:00 WARN [2x9Q] skipping failed source policy=fail-fast source=1\n",
		buf.String())
}

func TestSetLevel(t *testing.T) {
	defer SetLevel(slog.LevelInfo)

	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	SetLevel(slog.LevelDebug)
	logger.Debug("shown")
	assert.Contains(t, buf.String(), "DEBUG [main] shown")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}
