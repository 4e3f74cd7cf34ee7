package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{FatalLevel, "FATAL"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestStructuredLogger(t *testing.T) {
	t.Run("LogLevelFiltering", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&buf, WarnLevel)

		l.Debug("debug message")
		assert.Empty(t, buf.String())

		l.Info("info message")
		assert.Empty(t, buf.String())

		l.Warn("warn message")
		assert.NotEmpty(t, buf.String())

		buf.Reset()
		l.Error("error message")
		assert.NotEmpty(t, buf.String())
	})

	t.Run("StructuredFields", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&buf, InfoLevel)

		l.Info("test message",
			String("key1", "value1"),
			Int("key2", 42),
			Bool("key3", true),
			Error(errors.New("test error")),
		)

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "test message", entry["message"])
		assert.Equal(t, "value1", entry["key1"])
		assert.Equal(t, float64(42), entry["key2"])
		assert.Equal(t, true, entry["key3"])
		assert.Equal(t, "test error", entry["error"])
		assert.NotNil(t, entry["timestamp"])
	})

	t.Run("WithFields", func(t *testing.T) {
		var buf bytes.Buffer
		base := NewLogger(&buf, InfoLevel)

		l := base.WithFields(String("component", "sync"))
		l.Info("test message")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "sync", entry["component"])
	})

	t.Run("WithContext", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&buf, InfoLevel)

		ctx := WithRequestID(context.Background(), "req-123")
		l.WithContext(ctx).Info("test message")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "req-123", entry["request_id"])
	})

	t.Run("SetLevel", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&buf, InfoLevel)

		l.Debug("filtered")
		assert.Empty(t, buf.String())

		l.SetLevel(DebugLevel)
		l.Debug("not filtered")
		assert.NotEmpty(t, buf.String())
	})
}

func TestFieldConstructors(t *testing.T) {
	assert.Equal(t, Field{Key: "key", Value: "value"}, String("key", "value"))
	assert.Equal(t, Field{Key: "count", Value: 42}, Int("count", 42))
	assert.Equal(t, Field{Key: "enabled", Value: true}, Bool("enabled", true))

	f := Error(nil)
	assert.Nil(t, f.Value)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("Error"))
	assert.Equal(t, FatalLevel, ParseLevel("FATAL"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("nonsense"))
}

func TestEmit_FieldOrderIsStable(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, InfoLevel)
	l.DisableCallerInfo()

	for i := 0; i < 5; i++ {
		buf.Reset()
		l.Info("ordered", String("a", "1"), String("b", "2"), String("c", "3"))

		line := buf.String()
		idxA := strings.Index(line, `"a"`)
		idxB := strings.Index(line, `"b"`)
		idxC := strings.Index(line, `"c"`)
		require.True(t, idxA < idxB && idxB < idxC, "expected a < b < c in %s", line)
	}
}

func TestEmit_LaterFieldOverridesEarlierSameKey(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&buf, InfoLevel)
	l := base.WithFields(String("outcome", "pending"))

	l.Info("test message", String("outcome", "success"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "success", entry["outcome"])
}

func TestWithTraceID(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, InfoLevel)

	ctx := WithTraceID(context.Background(), "trace-42")
	l.WithContext(ctx).Info("test message")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trace-42", entry["trace_id"])
}

func TestDefaultLogger_SetAndGet(t *testing.T) {
	original := GetDefaultLogger()
	defer SetDefaultLogger(original)

	var buf bytes.Buffer
	SetDefaultLogger(NewLogger(&buf, InfoLevel))

	Info("via package-level default")
	assert.Contains(t, buf.String(), "via package-level default")
}
