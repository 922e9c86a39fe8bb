package planner

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/harrowd/harrow/pkg/config"
	"github.com/harrowd/harrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAnalysis returns canned drain fractions and a logarithmic growth
// estimate, mimicking the shape of the host formulas
type fakeAnalysis struct {
	drainFraction float64
	growthPerLog  float64
}

func (f *fakeAnalysis) HackDrainFraction(ctx context.Context, targetID string) (float64, error) {
	return f.drainFraction, nil
}

func (f *fakeAnalysis) GrowthThreads(ctx context.Context, targetID string, multiplier float64) (int, error) {
	if multiplier <= 1 {
		return 0, nil
	}
	return int(math.Ceil(math.Log(multiplier) * f.growthPerLog)), nil
}

func saturatedTarget() *types.Target {
	return &types.Target{
		ID:          "megacorp",
		Money:       1_000_000,
		MaxMoney:    1_000_000,
		Security:    5,
		MinSecurity: 5,
		HackTime:    10 * time.Second,
		GrowTime:    32 * time.Second,
		WeakenTime:  40 * time.Second,
	}
}

func TestPlanThreadCounts(t *testing.T) {
	cfg := config.Default()
	p := NewPlanner(cfg, &fakeAnalysis{drainFraction: 0.01, growthPerLog: 100})

	land := time.Now().Add(time.Minute)
	batch, err := p.Plan(context.Background(), saturatedTarget(), land)
	require.NoError(t, err)

	// 0.25 fraction / 0.01 per thread = 25 hack threads
	assert.Equal(t, 25, batch.Threads[types.SlotHack])
	assert.Equal(t, 1, batch.Threads[types.SlotWeakenAfterHack])
	assert.Greater(t, batch.Threads[types.SlotGrow], 0)
	assert.Greater(t, batch.Threads[types.SlotWeakenAfterGrow], 0)

	// Weaken threads fully offset the security each phase adds
	hackSec := float64(batch.Threads[types.SlotHack]) * cfg.HackSecurityDelta
	growSec := float64(batch.Threads[types.SlotGrow]) * cfg.GrowSecurityDelta
	assert.GreaterOrEqual(t, float64(batch.Threads[types.SlotWeakenAfterHack])*cfg.WeakenPotency, hackSec)
	assert.GreaterOrEqual(t, float64(batch.Threads[types.SlotWeakenAfterGrow])*cfg.WeakenPotency, growSec)
}

func TestPlanLandingOrder(t *testing.T) {
	cfg := config.Default()
	p := NewPlanner(cfg, &fakeAnalysis{drainFraction: 0.002, growthPerLog: 50})

	land := time.Now().Add(time.Minute)
	batch, err := p.Plan(context.Background(), saturatedTarget(), land)
	require.NoError(t, err)

	assert.Equal(t, land, batch.LandTimeFor(types.SlotHack))
	for slot := types.SlotWeakenAfterHack; slot < types.SlotCount; slot++ {
		gap := batch.LandTimeFor(slot).Sub(batch.LandTimeFor(slot - 1))
		assert.Equal(t, cfg.Spacing, gap, "slot %s", slot)
	}

	// Start = landing - duration + slack, per slot
	tgt := saturatedTarget()
	for slot := types.SlotHack; slot < types.SlotCount; slot++ {
		want := batch.LandTimeFor(slot).Add(-slot.Op().Duration(tgt)).Add(cfg.DispatchSlack)
		assert.Equal(t, want, batch.StartTimes[slot], "slot %s", slot)
	}
}

func TestPlanFloorsHackThreads(t *testing.T) {
	cfg := config.Default()
	cfg.HackFraction = 0.25

	// 0.25 / 0.07 = 3.57; flooring to 3 keeps drain below the fraction
	p := NewPlanner(cfg, &fakeAnalysis{drainFraction: 0.07, growthPerLog: 50})

	batch, err := p.Plan(context.Background(), saturatedTarget(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Threads[types.SlotHack])

	drained := 0.07 * float64(batch.Threads[types.SlotHack])
	assert.LessOrEqual(t, drained, cfg.HackFraction)
}

func TestPlanInvalid(t *testing.T) {
	tests := []struct {
		name     string
		target   *types.Target
		analysis *fakeAnalysis
	}{
		{
			name: "zero money ceiling",
			target: &types.Target{
				ID: "husk", MaxMoney: 0, Security: 1, MinSecurity: 1,
			},
			analysis: &fakeAnalysis{drainFraction: 0.01, growthPerLog: 50},
		},
		{
			name:     "zero drain fraction",
			target:   saturatedTarget(),
			analysis: &fakeAnalysis{drainFraction: 0, growthPerLog: 50},
		},
		{
			name:     "NaN drain fraction",
			target:   saturatedTarget(),
			analysis: &fakeAnalysis{drainFraction: math.NaN(), growthPerLog: 50},
		},
		{
			name:     "single thread overdrains",
			target:   saturatedTarget(),
			analysis: &fakeAnalysis{drainFraction: 0.9, growthPerLog: 50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlanner(config.Default(), tt.analysis)
			_, err := p.Plan(context.Background(), tt.target, time.Now())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPlan)
		})
	}
}

func TestPrepThreads(t *testing.T) {
	cfg := config.Default()
	p := NewPlanner(cfg, &fakeAnalysis{drainFraction: 0.01, growthPerLog: 10})

	t.Run("drifted target", func(t *testing.T) {
		// 5 points of excess security at 0.05/thread = 100 weaken threads
		tgt := &types.Target{
			ID: "n00dles", Money: 1, MaxMoney: 1_000_000,
			Security: 10, MinSecurity: 5,
		}
		w1, grow, w2, err := p.PrepThreads(context.Background(), tgt)
		require.NoError(t, err)

		assert.Equal(t, 100, w1)
		// multiplier 1e6/1, log(1e6)*10 = 139 threads
		assert.Equal(t, 139, grow)
		// ceil(139/12.5) = 12
		assert.Equal(t, 12, w2)
	})

	t.Run("saturated target needs nothing", func(t *testing.T) {
		w1, grow, w2, err := p.PrepThreads(context.Background(), saturatedTarget())
		require.NoError(t, err)
		assert.Zero(t, w1)
		assert.Zero(t, grow)
		assert.Zero(t, w2)
	})

	t.Run("zero money clamps multiplier denominator", func(t *testing.T) {
		tgt := &types.Target{
			ID: "drained", Money: 0, MaxMoney: 1000,
			Security: 5, MinSecurity: 5,
		}
		_, grow, _, err := p.PrepThreads(context.Background(), tgt)
		require.NoError(t, err)
		assert.Greater(t, grow, 0)
	})
}
