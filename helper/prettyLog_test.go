package helper

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrettyHandler(t *testing.T) {
	t.Run("Create PrettyHandler with empty options", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		require.NotNil(t, handler, "Expected NewPrettyHandler to return a non-nil handler")
		assert.NotNil(t, handler.Handler, "Expected handler to wrap a slog handler")
		assert.NotNil(t, handler.l, "Expected handler to have a line logger")
	})

	t.Run("Level option is honoured by Enabled", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{Level: slog.LevelWarn},
		})

		assert.False(t, handler.Enabled(context.Background(), slog.LevelInfo), "Expected info to be disabled at warn level")
		assert.True(t, handler.Enabled(context.Background(), slog.LevelError), "Expected error to be enabled at warn level")
	})
}

func TestPrettyHandlerHandle(t *testing.T) {
	ctx := context.Background()

	levels := []struct {
		level slog.Level
		label string
	}{
		{slog.LevelDebug, "DEBUG:"},
		{slog.LevelInfo, "INFO:"},
		{slog.LevelWarn, "WARN:"},
		{slog.LevelError, "ERROR:"},
	}
	for _, lv := range levels {
		t.Run("Handle writes the "+lv.label+" label", func(t *testing.T) {
			var buf bytes.Buffer
			handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

			record := slog.NewRecord(time.Now(), lv.level, "rebuild finished", 0)
			record.AddAttrs(slog.Int("chunks", 42))

			err := handler.Handle(ctx, record)
			assert.NoError(t, err, "Expected Handle to not return an error")
			output := buf.String()
			assert.Contains(t, output, lv.label, "Expected output to contain the level label")
			assert.Contains(t, output, "rebuild finished", "Expected output to contain the message")
			assert.Contains(t, output, `"chunks":42`, "Expected output to contain the attribute as JSON")
		})
	}

	t.Run("Error attributes are rendered as their message", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		record := slog.NewRecord(time.Now(), slog.LevelError, "generation failed", 0)
		record.AddAttrs(slog.Any("error", errors.New("ollama unreachable")))

		err := handler.Handle(ctx, record)
		assert.NoError(t, err, "Expected Handle to not return an error")
		assert.Contains(t, buf.String(), `"error":"ollama unreachable"`, "Expected error to be rendered as a string")
	})

	t.Run("Record without attributes prints an empty object", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		err := handler.Handle(ctx, slog.NewRecord(time.Now(), slog.LevelInfo, "cache cleared", 0))
		assert.NoError(t, err, "Expected Handle to not return an error")
		assert.Contains(t, buf.String(), "{}", "Expected output to contain an empty JSON object")
	})

	t.Run("Timestamp uses the bracketed clock format", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		err := handler.Handle(ctx, slog.NewRecord(time.Now(), slog.LevelInfo, "time test", 0))
		assert.NoError(t, err, "Expected Handle to not return an error")
		assert.Regexp(t, `\[\d{2}:\d{2}:\d{2}\.\d{3}\]`, buf.String(), "Expected output to contain a formatted timestamp")
	})

	t.Run("Unmarshalable attribute returns an error", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		record := slog.NewRecord(time.Now(), slog.LevelInfo, "bad attr", 0)
		record.AddAttrs(slog.Any("fn", func() {}))

		err := handler.Handle(ctx, record)
		assert.Error(t, err, "Expected Handle to return an error for a function attribute")
	})
}

func TestParseLevel(t *testing.T) {
	t.Run("Known names map to their level", func(t *testing.T) {
		assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
		assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
		assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
		assert.Equal(t, slog.LevelError, ParseLevel("error"))
	})

	t.Run("Unknown names fall back to info", func(t *testing.T) {
		assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
		assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Records below the level are dropped", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf, slog.LevelWarn)

		logger.Info("hidden")
		logger.Warn("shown", slog.String("stage", "primary"))

		output := buf.String()
		assert.NotContains(t, output, "hidden", "Expected info record to be filtered")
		assert.Contains(t, output, "shown", "Expected warn record to be written")
		assert.Contains(t, output, `"stage":"primary"`, "Expected attribute to be written")
	})
}
