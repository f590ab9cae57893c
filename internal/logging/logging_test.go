package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewBuildsLoggerAtRequestedLevel(t *testing.T) {
	logger, err := New("debug", "json")
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("not-a-level", "text")
	assert.Error(t, err)
}

func TestNewVerboseEnablesDebug(t *testing.T) {
	logger, err := NewVerbose()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}
