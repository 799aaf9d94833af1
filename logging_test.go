package catrust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerFallsBackToNop(t *testing.T) {
	log := NewLogger(nil, SubsystemSchema)
	require.NotNil(t, log)
	// A nop logger should not panic on use.
	log.Infow("noop")
}

func TestNewLoggerForConfigEmptyLevelIsNop(t *testing.T) {
	base, err := NewLoggerForConfig(LoggingConfig{})
	require.NoError(t, err)
	require.NotNil(t, base)
	assert.Equal(t, zap.NewNop(), base)
}

func TestNewLoggerForConfigBuildsLeveledLogger(t *testing.T) {
	base, err := NewLoggerForConfig(LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, base)
	assert.True(t, base.Core().Enabled(zap.DebugLevel))
}

func TestNewLoggerForConfigConsoleFormat(t *testing.T) {
	base, err := NewLoggerForConfig(LoggingConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, base)
	assert.False(t, base.Core().Enabled(zap.InfoLevel))
	assert.True(t, base.Core().Enabled(zap.WarnLevel))
}
