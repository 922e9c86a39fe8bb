package pool

import (
	"context"
	"fmt"
	"testing"

	"github.com/harrowd/harrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost serves canned worker states for pool tests
type fakeHost struct {
	workers map[string]*types.Worker
	order   []string
	listErr error
}

func (f *fakeHost) ListWorkers(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.order, nil
}

func (f *fakeHost) ListTargets(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakeHost) WorkerState(ctx context.Context, id string) (*types.Worker, error) {
	w, ok := f.workers[id]
	if !ok {
		return nil, fmt.Errorf("worker not found: %s", id)
	}
	return w, nil
}

func (f *fakeHost) TargetState(ctx context.Context, id string) (*types.Target, error) {
	return nil, fmt.Errorf("target not found: %s", id)
}

func newFakeHost(workers ...*types.Worker) *fakeHost {
	f := &fakeHost{workers: make(map[string]*types.Worker)}
	for _, w := range workers {
		f.workers[w.ID] = w
		f.order = append(f.order, w.ID)
	}
	return f
}

func TestRefreshAndEligible(t *testing.T) {
	host := newFakeHost(
		&types.Worker{ID: "small", TotalRAM: 8, UsedRAM: 0, Cores: 1, Admin: true},
		&types.Worker{ID: "big", TotalRAM: 64, UsedRAM: 16, Cores: 4, Admin: true},
		&types.Worker{ID: "locked", TotalRAM: 128, UsedRAM: 0, Cores: 1, Admin: false},
		&types.Worker{ID: "full", TotalRAM: 16, UsedRAM: 16, Cores: 1, Admin: true},
	)

	p := NewPool(host, host)
	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, 4, p.Size())

	eligible := p.Eligible()
	require.Len(t, eligible, 2, "locked and full workers must be excluded")

	// Largest available RAM first
	assert.Equal(t, "big", eligible[0].ID)
	assert.Equal(t, "small", eligible[1].ID)
}

func TestEligibleTieBreaksOnID(t *testing.T) {
	host := newFakeHost(
		&types.Worker{ID: "zeta", TotalRAM: 32, Admin: true},
		&types.Worker{ID: "alpha", TotalRAM: 32, Admin: true},
	)

	p := NewPool(host, host)
	require.NoError(t, p.Refresh(context.Background()))

	eligible := p.Eligible()
	require.Len(t, eligible, 2)
	assert.Equal(t, "alpha", eligible[0].ID)
	assert.Equal(t, "zeta", eligible[1].ID)
}

func TestTotalThreadCapacityFloorsPerWorker(t *testing.T) {
	// 3.4/1.75 = 1 thread, 8.0/1.75 = 4 threads; a shared pool would fit 6
	host := newFakeHost(
		&types.Worker{ID: "a", TotalRAM: 3.4, Admin: true},
		&types.Worker{ID: "b", TotalRAM: 8.0, Admin: true},
	)

	p := NewPool(host, host)
	require.NoError(t, p.Refresh(context.Background()))

	assert.Equal(t, 5, p.TotalThreadCapacity(1.75))
}

func TestRefreshPropagatesErrors(t *testing.T) {
	host := newFakeHost(&types.Worker{ID: "a", TotalRAM: 8, Admin: true})
	host.order = append(host.order, "ghost") // state query will fail

	p := NewPool(host, host)
	assert.Error(t, p.Refresh(context.Background()))
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	host := newFakeHost(&types.Worker{ID: "a", TotalRAM: 8, UsedRAM: 0, Admin: true})

	p := NewPool(host, host)
	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, 4, p.TotalThreadCapacity(2.0))

	// Host reports more RAM in use on the next tick
	host.workers["a"] = &types.Worker{ID: "a", TotalRAM: 8, UsedRAM: 6, Admin: true}
	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, 1, p.TotalThreadCapacity(2.0))
}
