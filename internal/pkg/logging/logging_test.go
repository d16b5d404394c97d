package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"gotest.tools/v3/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{" WARN ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		lvl, err := ParseLevel(tt.in)
		assert.NilError(t, err)
		assert.Equal(t, lvl, tt.want)
	}

	_, err := ParseLevel("loud")
	assert.ErrorContains(t, err, "log level")
}

func TestNew(t *testing.T) {
	logger, err := New("debug", true)
	assert.NilError(t, err)
	assert.Assert(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New("warn", false)
	assert.NilError(t, err)
	assert.Assert(t, !logger.Core().Enabled(zapcore.InfoLevel))
}
