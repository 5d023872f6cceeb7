package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"ERROR", LogLevelError},
		{"warn", LogLevelWarn},
		{" DEBUG ", LogLevelDebug},
		{"TRACE", LogLevelTrace},
		{"INFO", LogLevelInfo},
		{"", LogLevelInfo},
		{"verbose", LogLevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLogLevel(tt.in), tt.in)
	}
}

func TestLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LogLevelWarn, false)

	logger.Info("hidden")
	logger.Debug("hidden too")
	logger.Warn("shown", "trials", 10)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "trials=10")
}

func TestLogger_TraceAndWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LogLevelTrace, false).With("run", "abc")

	logger.Trace("deep detail")
	assert.Contains(t, buf.String(), "deep detail")
	assert.Contains(t, buf.String(), "run=abc")
	assert.Equal(t, LogLevelTrace, logger.GetLevel())
}
