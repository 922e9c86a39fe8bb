package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/harrowd/harrow/pkg/config"
	"github.com/harrowd/harrow/pkg/log"
	"github.com/harrowd/harrow/pkg/provider"
	"github.com/harrowd/harrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true})
}

// fakeExec records launches and serves a mutable process table
type fakeExec struct {
	launched  []provider.ExecRequest
	processes map[string][]*provider.Process // workerID -> running
	deployed  map[string]int
	failOn    string // workerID whose dispatches fail
}

func newFakeExec() *fakeExec {
	return &fakeExec{
		processes: make(map[string][]*provider.Process),
		deployed:  make(map[string]int),
	}
}

func (f *fakeExec) Dispatch(ctx context.Context, req provider.ExecRequest) (*provider.Process, error) {
	if req.WorkerID == f.failOn {
		return nil, fmt.Errorf("out of memory on %s", req.WorkerID)
	}
	f.launched = append(f.launched, req)
	p := &provider.Process{
		ID:       fmt.Sprintf("proc-%d", len(f.launched)),
		ScriptID: req.ScriptID,
		WorkerID: req.WorkerID,
		Threads:  req.Threads,
	}
	f.processes[req.WorkerID] = append(f.processes[req.WorkerID], p)
	return p, nil
}

func (f *fakeExec) ListProcesses(ctx context.Context, workerID, scriptID string) ([]*provider.Process, error) {
	return f.processes[workerID], nil
}

func (f *fakeExec) Terminate(ctx context.Context, workerID, scriptID string) error {
	delete(f.processes, workerID)
	return nil
}

func (f *fakeExec) EnsureScriptPresent(ctx context.Context, workerID, scriptID string) error {
	f.deployed[workerID]++
	return nil
}

func allocatedBatch(land time.Time, spacing time.Duration) *types.Batch {
	b := &types.Batch{
		ID:       "batch-1",
		TargetID: "megacorp",
		Threads:  [types.SlotCount]int{4, 1, 3, 1},
		LandTime: land,
		Spacing:  spacing,
	}
	b.Assignments[types.SlotHack] = []types.Assignment{{WorkerID: "w1", Threads: 4}}
	b.Assignments[types.SlotWeakenAfterHack] = []types.Assignment{{WorkerID: "w1", Threads: 1}}
	b.Assignments[types.SlotGrow] = []types.Assignment{{WorkerID: "w2", Threads: 3}}
	b.Assignments[types.SlotWeakenAfterGrow] = []types.Assignment{{WorkerID: "w2", Threads: 1}}
	return b
}

func TestDispatchIssuesOneLaunchPerAssignment(t *testing.T) {
	cfg := config.Default()
	exec := newFakeExec()
	d := NewDispatcher(cfg, exec, exec)

	land := time.Now().Add(time.Minute)
	batch := allocatedBatch(land, cfg.Spacing)
	d.Dispatch(context.Background(), batch)

	require.Len(t, exec.launched, 4)

	// Each launch carries the flat (target, op, landTime) tuple
	hack := exec.launched[0]
	assert.Equal(t, cfg.ScriptID, hack.ScriptID)
	assert.Equal(t, "megacorp", hack.TargetID)
	assert.Equal(t, types.OpHack, hack.Op)
	assert.Equal(t, land, hack.LandTime)

	// Landing times step by one spacing per slot
	for i := 1; i < 4; i++ {
		gap := exec.launched[i].LandTime.Sub(exec.launched[i-1].LandTime)
		assert.Equal(t, cfg.Spacing, gap)
	}

	assert.Equal(t, 1, d.InFlight())
	assert.Equal(t, land.Add(3*cfg.Spacing), d.LastLandTime())
}

func TestDispatchSkipsFailedLaunches(t *testing.T) {
	cfg := config.Default()
	exec := newFakeExec()
	exec.failOn = "w2"
	d := NewDispatcher(cfg, exec, exec)

	batch := allocatedBatch(time.Now(), cfg.Spacing)
	d.Dispatch(context.Background(), batch)

	// w1's launches proceed even though w2's fail
	assert.Len(t, exec.launched, 2)
	assert.Equal(t, 1, d.InFlight())
}

func TestPrepareDeploysOncePerWorker(t *testing.T) {
	cfg := config.Default()
	exec := newFakeExec()
	d := NewDispatcher(cfg, exec, exec)

	workers := []*types.Worker{
		{ID: "w1", TotalRAM: 8, Admin: true},
		{ID: "w2", TotalRAM: 8, Admin: true},
	}
	require.NoError(t, d.Prepare(context.Background(), workers))

	assert.Equal(t, 1, exec.deployed["w1"])
	assert.Equal(t, 1, exec.deployed["w2"])
}

func TestDrained(t *testing.T) {
	cfg := config.Default()
	exec := newFakeExec()
	d := NewDispatcher(cfg, exec, exec)

	batch := allocatedBatch(time.Now(), cfg.Spacing)
	d.Dispatch(context.Background(), batch)

	workerIDs := []string{"w1", "w2"}

	drained, err := d.Drained(context.Background(), workerIDs)
	require.NoError(t, err)
	assert.False(t, drained)

	// Processes on w1 exit; w2 still busy
	delete(exec.processes, "w1")
	drained, err = d.Drained(context.Background(), workerIDs)
	require.NoError(t, err)
	assert.False(t, drained)

	delete(exec.processes, "w2")
	drained, err = d.Drained(context.Background(), workerIDs)
	require.NoError(t, err)
	assert.True(t, drained)
}

func TestTerminateKillsEverything(t *testing.T) {
	cfg := config.Default()
	exec := newFakeExec()
	d := NewDispatcher(cfg, exec, exec)

	batch := allocatedBatch(time.Now(), cfg.Spacing)
	d.Dispatch(context.Background(), batch)

	workerIDs := []string{"w1", "w2"}
	require.NoError(t, d.Terminate(context.Background(), workerIDs))

	drained, err := d.Drained(context.Background(), workerIDs)
	require.NoError(t, err)
	assert.True(t, drained)

	// Terminating an already-clean fleet is a no-op
	require.NoError(t, d.Terminate(context.Background(), workerIDs))
}

func TestReset(t *testing.T) {
	cfg := config.Default()
	exec := newFakeExec()
	d := NewDispatcher(cfg, exec, exec)

	d.Dispatch(context.Background(), allocatedBatch(time.Now(), cfg.Spacing))
	require.Equal(t, 1, d.InFlight())

	d.Reset()
	assert.Zero(t, d.InFlight())
	assert.True(t, d.LastLandTime().IsZero())
}
