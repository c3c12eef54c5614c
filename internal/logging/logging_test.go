package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	testcases := []struct {
		level   string
		format  string
		enabled zapcore.Level
	}{
		{level: "info", format: "json", enabled: zapcore.InfoLevel},
		{level: "debug", format: "console", enabled: zapcore.DebugLevel},
		{level: "WARN", format: "", enabled: zapcore.WarnLevel},
	}
	for _, tc := range testcases {
		t.Run("success - "+tc.level+" "+tc.format, func(t *testing.T) {
			// act
			logger, err := New(tc.level, tc.format)

			// assert
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tc.enabled))
			assert.False(t, logger.Core().Enabled(tc.enabled-1))
		})
	}
	t.Run("failure - unknown level", func(t *testing.T) {
		_, err := New("loud", "json")
		assert.Error(t, err)
	})
	t.Run("failure - unknown format", func(t *testing.T) {
		_, err := New("info", "xml")
		assert.Error(t, err)
	})
}
