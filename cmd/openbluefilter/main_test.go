package main

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isaacp5/OpenBlueFilter/display"
	"github.com/isaacp5/OpenBlueFilter/gamma"
)

func TestOneshotKeepLeavesAdjustmentApplied(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	adapter := display.NewNoop(nil)
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, runOneshot(slog.New(slog.NewTextHandler(io.Discard, nil)), path, adapter, true))
	assert.NotEqual(t, gamma.Neutral, adapter.Current(), "the tint outlives the process in keep mode")
}

func TestOneshotRevertRestoresNeutral(t *testing.T) {
	adapter := display.NewNoop(nil)
	require.NoError(t, adapter.Apply(gamma.Compute(3200, 60)))

	require.NoError(t, runOneshot(slog.New(slog.NewTextHandler(io.Discard, nil)), "", adapter, false))
	assert.Equal(t, gamma.Neutral, adapter.Current())
}

func TestOneshotFlagValues(t *testing.T) {
	keep, err := oneshotKeeps("keep")
	require.NoError(t, err)
	assert.True(t, keep)

	keep, err = oneshotKeeps("revert")
	require.NoError(t, err)
	assert.False(t, keep)

	_, err = oneshotKeeps("yes")
	assert.Error(t, err)
}
