package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestFactory_CreateLogger(t *testing.T) {
	factory := NewFactory()
	t.Run("Should build structured logger at requested level", func(t *testing.T) {
		logger, err := factory.CreateLogger(LevelDebug, FormatStructured)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})
	t.Run("Should build console logger and accept upper case", func(t *testing.T) {
		logger, err := factory.CreateLogger(Level("WARN"), Format("Console"))
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	})
	t.Run("Should reject unsupported level", func(t *testing.T) {
		_, err := factory.CreateLogger(Level("verbose"), FormatConsole)
		assert.ErrorContains(t, err, "unsupported log level")
	})
	t.Run("Should reject unsupported format", func(t *testing.T) {
		_, err := factory.CreateLogger(LevelInfo, Format("xml"))
		assert.ErrorContains(t, err, "unsupported log format")
	})
}
