package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestConsoleHandler_WritesAttrsAndGroups(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	log := New(&buf, "info").With("component", "survey").WithGroup("req")

	log.Info("created", "id", 42)

	out := buf.String()
	assert.Contains(t, out, "INFO: created")
	assert.Contains(t, out, "component=survey")
	assert.Contains(t, out, "req.id=42")
}

func TestConsoleHandler_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
