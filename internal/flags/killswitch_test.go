package flags

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKillSwitchDefaultsToNotPausedWithNilStore(t *testing.T) {
	k := NewKillSwitch(nil)
	assert.False(t, k.LiquidationsPaused(context.Background()))
	assert.False(t, k.RebalancePaused(context.Background()))
}

func TestKillSwitchReflectsStoredFlags(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	store, err := NewStore(client)
	require.NoError(t, err)

	k := NewKillSwitch(store)
	ctx := context.Background()

	assert.False(t, k.LiquidationsPaused(ctx))

	require.NoError(t, k.SetLiquidationsPaused(ctx, true))
	assert.True(t, k.LiquidationsPaused(ctx))
	assert.False(t, k.RebalancePaused(ctx))

	require.NoError(t, k.SetLiquidationsPaused(ctx, false))
	assert.False(t, k.LiquidationsPaused(ctx))
}
