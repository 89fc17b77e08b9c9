package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	l, err := New("debug", "json", "test-service")
	require.NoError(t, err)
	require.NotNil(t, l)
	l.Debug("debug message visible at debug level")
}

func TestNew_ConsoleFormat(t *testing.T) {
	l, err := New("info", "console", "test-service")
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	l, err := New("verbose", "json", "")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(-1)) // debug 级别应被关闭
}
