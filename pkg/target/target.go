package target

import (
	"context"
	"fmt"
	"time"

	"github.com/harrowd/harrow/pkg/provider"
	"github.com/harrowd/harrow/pkg/types"
)

// Snapshot reads the target's current state from the host. Side-effect
// free; callers re-snapshot every loop iteration instead of retrying a
// possibly stale read.
func Snapshot(ctx context.Context, state provider.State, id string) (*types.Target, error) {
	t, err := state.TargetState(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot target %s: %w", id, err)
	}
	t.TakenAt = time.Now()
	return t, nil
}

// SecurityExcess returns how far the target's defense sits above its
// floor; zero when fully weakened
func SecurityExcess(t *types.Target) float64 {
	excess := t.Security - t.MinSecurity
	if excess < 0 {
		return 0
	}
	return excess
}

// MoneyRatio returns current money over ceiling, clamped to [0, 1].
// Targets with a zero ceiling report 0 and are never worth batching.
func MoneyRatio(t *types.Target) float64 {
	if t.MaxMoney <= 0 {
		return 0
	}
	ratio := t.Money / t.MaxMoney
	if ratio > 1 {
		return 1
	}
	if ratio < 0 {
		return 0
	}
	return ratio
}
