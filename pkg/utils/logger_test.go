package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewSugaredLogger(t *testing.T) {
	t.Parallel()

	verbose, err := NewSugaredLogger("test", true)
	require.NoError(t, err)
	assert.True(t, verbose.Desugar().Core().Enabled(zapcore.DebugLevel))

	quiet, err := NewSugaredLogger("test", false)
	require.NoError(t, err)
	assert.False(t, quiet.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, quiet.Desugar().Core().Enabled(zapcore.InfoLevel))
}
