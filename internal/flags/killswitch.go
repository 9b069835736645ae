package flags

import "context"

const (
	// FlagLiquidationsPaused, when true, stops the processor from issuing
	// liquidation transactions (scan/valuation still runs).
	FlagLiquidationsPaused = "liquidations_paused"

	// FlagRebalancePaused, when true, stops the processor's rebalance
	// phase (selling non-preferred holdings, depositing preferred ones).
	FlagRebalancePaused = "rebalance_paused"
)

// KillSwitch wraps a Store with the two named operational flags the
// processor consults at the top of every loop iteration. A missing or
// unreachable backing store must never itself halt the bot (SPEC_FULL.md:
// "a missing kill switch must never itself become a liveness fault"), so
// every read defaults to "not paused" on error.
type KillSwitch struct {
	store *Store
}

// NewKillSwitch wraps store. A nil store is valid: every check then
// always reports "not paused".
func NewKillSwitch(store *Store) *KillSwitch {
	return &KillSwitch{store: store}
}

func (k *KillSwitch) isSet(ctx context.Context, key string) bool {
	if k.store == nil {
		return false
	}
	flag, err := k.store.Get(ctx, key)
	if err != nil {
		return false
	}
	return flag.Value
}

// LiquidationsPaused reports whether liquidations are currently paused.
func (k *KillSwitch) LiquidationsPaused(ctx context.Context) bool {
	return k.isSet(ctx, FlagLiquidationsPaused)
}

// RebalancePaused reports whether rebalancing is currently paused.
func (k *KillSwitch) RebalancePaused(ctx context.Context) bool {
	return k.isSet(ctx, FlagRebalancePaused)
}

// SetLiquidationsPaused pauses or resumes liquidations.
func (k *KillSwitch) SetLiquidationsPaused(ctx context.Context, paused bool) error {
	_, err := k.store.Upsert(ctx, FlagLiquidationsPaused, paused)
	return err
}

// SetRebalancePaused pauses or resumes the rebalance phase.
func (k *KillSwitch) SetRebalancePaused(ctx context.Context, paused bool) error {
	_, err := k.store.Upsert(ctx, FlagRebalancePaused, paused)
	return err
}
