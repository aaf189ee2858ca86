package xlog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xtrigger/pkg/observability/xlog"
)

func buildLogger(t *testing.T, b *xlog.Builder) xlog.LoggerWithLevel {
	t.Helper()
	logger, cleanup, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, cleanup()) })
	return logger
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := buildLogger(t, xlog.New().SetOutput(&buf).SetLevel(xlog.LevelDebug))
	ctx := context.Background()

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message")

	out := buf.String()
	for _, want := range []string{"debug message", "info message", "warn message", "error message"} {
		assert.Contains(t, out, want)
	}
}

func TestLogger_DynamicLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := buildLogger(t, xlog.New().SetOutput(&buf))
	ctx := context.Background()

	logger.Debug(ctx, "hidden")
	assert.NotContains(t, buf.String(), "hidden")

	child := logger.With(slog.String("scheduler", "orders"))
	logger.SetLevel(xlog.LevelDebug)
	child.Debug(ctx, "visible")

	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "scheduler=orders")
	assert.Equal(t, xlog.LevelDebug, logger.GetLevel())
	assert.True(t, logger.Enabled(ctx, xlog.LevelDebug))
}

func TestLogger_JSONFormatAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := buildLogger(t, xlog.New().
		SetOutput(&buf).
		SetFormat("JSON").
		SetAttrs(slog.String("app", "xtrigger")))

	logger.Info(context.Background(), "task triggered",
		xlog.TaskID("A"),
		xlog.Err(errors.New("boom")),
		xlog.Duration(1500*time.Millisecond),
		xlog.Count(3),
		xlog.Component("poller"),
	)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "xtrigger", rec["app"])
	assert.Equal(t, "A", rec[xlog.KeyTaskID])
	assert.Equal(t, "boom", rec[xlog.KeyError])
	assert.Equal(t, "1.5s", rec[xlog.KeyDuration])
	assert.EqualValues(t, 3, rec[xlog.KeyCount])
	assert.Equal(t, "poller", rec[xlog.KeyComponent])
}

func TestErr_Nil(t *testing.T) {
	assert.True(t, xlog.Err(nil).Equal(slog.Attr{}))
}

func TestBuilder_Errors(t *testing.T) {
	t.Run("unknown format", func(t *testing.T) {
		_, _, err := xlog.New().SetFormat("xml").Build()
		assert.Error(t, err)
	})
	t.Run("unknown level", func(t *testing.T) {
		_, _, err := xlog.New().SetLevelString("verbose").Build()
		assert.Error(t, err)
	})
	t.Run("empty level keeps default", func(t *testing.T) {
		logger, _, err := xlog.New().SetLevelString(" ").Build()
		require.NoError(t, err)
		assert.Equal(t, xlog.LevelInfo, logger.GetLevel())
	})
	t.Run("empty rotation filename", func(t *testing.T) {
		_, _, err := xlog.New().SetRotation("", xlog.RotationConfig{}).Build()
		assert.Error(t, err)
	})
	t.Run("first error wins", func(t *testing.T) {
		_, _, err := xlog.New().SetFormat("xml").SetLevelString("nope").Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "format")
	})
}

func TestBuilder_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, cleanup, err := xlog.New().SetRotation(path, xlog.RotationConfig{MaxSizeMB: 1}).Build()
	require.NoError(t, err)

	logger.Info(context.Background(), "rotated output")
	require.NoError(t, cleanup())
	// 清理函数可重复调用
	require.NoError(t, cleanup())

	assert.FileExists(t, path)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want xlog.Level
		ok   bool
	}{
		{"debug", xlog.LevelDebug, true},
		{" INFO ", xlog.LevelInfo, true},
		{"warning", xlog.LevelWarn, true},
		{"Error", xlog.LevelError, true},
		{"trace", xlog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, err := xlog.ParseLevel(tt.in)
		if tt.ok {
			require.NoError(t, err, tt.in)
		} else {
			require.Error(t, err, tt.in)
		}
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLevel_TextRoundTrip(t *testing.T) {
	var l xlog.Level
	require.NoError(t, l.UnmarshalText([]byte("warn")))
	text, err := l.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "WARN", string(text))
	assert.Error(t, l.UnmarshalText([]byte("loud")))
	assert.True(t, strings.HasPrefix(xlog.Level(2).String(), "INFO"))
}

func TestDefaultAndDiscard(t *testing.T) {
	assert.NotNil(t, xlog.Default())

	d := xlog.Discard()
	xlog.SetDefault(d)
	assert.Same(t, d, xlog.Default())

	xlog.SetDefault(nil)
	assert.Same(t, d, xlog.Default())
	d.Info(context.Background(), "dropped")
}
