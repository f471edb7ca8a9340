package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarningLevel(t *testing.T) {
	assert.Equal(t, LevelSafe, WarningLevel(42, 70))
	assert.Equal(t, LevelWarning, WarningLevel(70, 70))
	assert.Equal(t, LevelWarning, WarningLevel(79.9, 70))
	assert.Equal(t, LevelCritical, WarningLevel(80, 70))
}

func TestDiskUsage(t *testing.T) {
	percent, err := DiskUsage(t.TempDir())()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, percent, 0.0)
	assert.LessOrEqual(t, percent, 100.0)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 12.34, round2(12.3456))
}
