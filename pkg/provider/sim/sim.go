package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harrowd/harrow/pkg/config"
	"github.com/harrowd/harrow/pkg/provider"
	"github.com/harrowd/harrow/pkg/types"
)

// TargetSpec seeds one simulated target
type TargetSpec struct {
	ID             string
	Money          float64
	MaxMoney       float64
	Security       float64
	MinSecurity    float64
	BaseHackTime   time.Duration // hack time at minimum security
	DrainPerThread float64       // fraction of money one hack thread drains
	GrowthFactor   float64       // threads per natural-log unit of growth
}

// WorkerSpec seeds one simulated worker
type WorkerSpec struct {
	ID    string
	RAM   float64
	Cores int
	Admin bool
}

type simTarget struct {
	spec     TargetSpec
	money    float64
	security float64
}

type simProcess struct {
	proc   provider.Process
	ram    float64
	cancel chan struct{}
}

// Grid is an in-memory simulation of the host environment: targets with
// money/security dynamics, workers with RAM, and timed operation
// processes. It implements the full provider.Host surface.
type Grid struct {
	cfg *config.Config

	mu        sync.Mutex
	targets   map[string]*simTarget
	workers   map[string]WorkerSpec
	processes map[string]*simProcess // process ID -> process
	deployed  map[string]bool        // workerID/scriptID
	wg        sync.WaitGroup
}

// NewGrid builds a grid from the given specs. The grid applies the same
// balance constants the scheduler plans with, so a correctly timed batch
// converges exactly.
func NewGrid(cfg *config.Config, targets []TargetSpec, workers []WorkerSpec) *Grid {
	g := &Grid{
		cfg:       cfg,
		targets:   make(map[string]*simTarget),
		workers:   make(map[string]WorkerSpec),
		processes: make(map[string]*simProcess),
		deployed:  make(map[string]bool),
	}
	for _, spec := range targets {
		g.targets[spec.ID] = &simTarget{
			spec:     spec,
			money:    spec.Money,
			security: spec.Security,
		}
	}
	for _, spec := range workers {
		g.workers[spec.ID] = spec
	}
	return g
}

// ListWorkers implements provider.Topology
func (g *Grid) ListWorkers(ctx context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.workers))
	for id := range g.workers {
		ids = append(ids, id)
	}
	return ids, nil
}

// ListTargets implements provider.Topology
func (g *Grid) ListTargets(ctx context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.targets))
	for id := range g.targets {
		ids = append(ids, id)
	}
	return ids, nil
}

// WorkerState implements provider.State
func (g *Grid) WorkerState(ctx context.Context, id string) (*types.Worker, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	spec, ok := g.workers[id]
	if !ok {
		return nil, fmt.Errorf("worker not found: %s", id)
	}

	used := 0.0
	for _, p := range g.processes {
		if p.proc.WorkerID == id {
			used += p.ram
		}
	}

	return &types.Worker{
		ID:       spec.ID,
		TotalRAM: spec.RAM,
		UsedRAM:  used,
		Cores:    spec.Cores,
		Admin:    spec.Admin,
	}, nil
}

// TargetState implements provider.State. Durations derive from the
// current security level: higher security, slower operations.
func (g *Grid) TargetState(ctx context.Context, id string) (*types.Target, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.targets[id]
	if !ok {
		return nil, fmt.Errorf("target not found: %s", id)
	}

	hackTime := g.hackTimeLocked(t)
	return &types.Target{
		ID:          t.spec.ID,
		Money:       t.money,
		MaxMoney:    t.spec.MaxMoney,
		Security:    t.security,
		MinSecurity: t.spec.MinSecurity,
		HackTime:    hackTime,
		GrowTime:    time.Duration(3.2 * float64(hackTime)),
		WeakenTime:  4 * hackTime,
	}, nil
}

func (g *Grid) opDurationLocked(t *simTarget, op types.OpType) time.Duration {
	hackTime := g.hackTimeLocked(t)
	switch op {
	case types.OpHack:
		return hackTime
	case types.OpGrow:
		return time.Duration(3.2 * float64(hackTime))
	default:
		return 4 * hackTime
	}
}

func (g *Grid) hackTimeLocked(t *simTarget) time.Duration {
	excess := t.security - t.spec.MinSecurity
	if excess < 0 {
		excess = 0
	}
	return time.Duration(float64(t.spec.BaseHackTime) * (1 + 0.1*excess))
}

// GrowthThreads implements provider.Analysis
func (g *Grid) GrowthThreads(ctx context.Context, targetID string, multiplier float64) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.targets[targetID]
	if !ok {
		return 0, fmt.Errorf("target not found: %s", targetID)
	}
	if multiplier <= 1 {
		return 0, nil
	}
	return int(math.Ceil(math.Log(multiplier) * t.spec.GrowthFactor)), nil
}

// HackDrainFraction implements provider.Analysis
func (g *Grid) HackDrainFraction(ctx context.Context, targetID string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.targets[targetID]
	if !ok {
		return 0, fmt.Errorf("target not found: %s", targetID)
	}
	return t.spec.DrainPerThread, nil
}

// EnsureScriptPresent implements provider.Deployer
func (g *Grid) EnsureScriptPresent(ctx context.Context, workerID, scriptID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.workers[workerID]; !ok {
		return fmt.Errorf("worker not found: %s", workerID)
	}
	g.deployed[workerID+"/"+scriptID] = true
	return nil
}

// Dispatch implements provider.Executor. The simulated process sleeps
// until its landing instant, applies the operation's effect atomically,
// and exits. A land time in the past completes after the operation's
// current duration instead.
func (g *Grid) Dispatch(ctx context.Context, req provider.ExecRequest) (*provider.Process, error) {
	g.mu.Lock()

	spec, ok := g.workers[req.WorkerID]
	if !ok {
		g.mu.Unlock()
		return nil, fmt.Errorf("worker not found: %s", req.WorkerID)
	}
	if !g.deployed[req.WorkerID+"/"+req.ScriptID] {
		g.mu.Unlock()
		return nil, fmt.Errorf("script %s not present on %s", req.ScriptID, req.WorkerID)
	}
	if req.Threads <= 0 {
		g.mu.Unlock()
		return nil, fmt.Errorf("invalid thread count %d", req.Threads)
	}

	ram := float64(req.Threads) * g.cfg.RAMForOp(string(req.Op))
	used := 0.0
	for _, p := range g.processes {
		if p.proc.WorkerID == req.WorkerID {
			used += p.ram
		}
	}
	if used+ram > spec.RAM {
		g.mu.Unlock()
		return nil, fmt.Errorf("out of memory on %s: need %.2f, free %.2f", req.WorkerID, ram, spec.RAM-used)
	}

	t, ok := g.targets[req.TargetID]
	if !ok {
		g.mu.Unlock()
		return nil, fmt.Errorf("target not found: %s", req.TargetID)
	}

	sp := &simProcess{
		proc: provider.Process{
			ID:       uuid.New().String(),
			ScriptID: req.ScriptID,
			WorkerID: req.WorkerID,
			Threads:  req.Threads,
		},
		ram:    ram,
		cancel: make(chan struct{}),
	}
	g.processes[sp.proc.ID] = sp

	runtime := time.Until(req.LandTime)
	if runtime <= 0 {
		runtime = g.opDurationLocked(t, req.Op)
	}
	g.mu.Unlock()

	g.wg.Add(1)
	go g.runProcess(sp, req, runtime)

	proc := sp.proc
	return &proc, nil
}

func (g *Grid) runProcess(sp *simProcess, req provider.ExecRequest, runtime time.Duration) {
	defer g.wg.Done()

	timer := time.NewTimer(runtime)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-sp.cancel:
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Killed between timer fire and lock acquisition
	if _, running := g.processes[sp.proc.ID]; !running {
		return
	}
	delete(g.processes, sp.proc.ID)

	t, ok := g.targets[req.TargetID]
	if !ok {
		return
	}
	g.applyLocked(t, req.Op, req.Threads)
}

func (g *Grid) applyLocked(t *simTarget, op types.OpType, threads int) {
	n := float64(threads)
	switch op {
	case types.OpWeaken:
		t.security -= g.cfg.WeakenPotency * n
		if t.security < t.spec.MinSecurity {
			t.security = t.spec.MinSecurity
		}
	case types.OpGrow:
		// A drained target grows from a floor of 1, matching the host
		if t.money < 1 {
			t.money = 1
		}
		if t.spec.GrowthFactor > 0 {
			t.money *= math.Exp(n / t.spec.GrowthFactor)
		}
		if t.money > t.spec.MaxMoney {
			t.money = t.spec.MaxMoney
		}
		t.security += g.cfg.GrowSecurityDelta * n
	case types.OpHack:
		amount := t.money * t.spec.DrainPerThread * n
		if amount > t.money {
			amount = t.money
		}
		t.money -= amount
		t.security += g.cfg.HackSecurityDelta * n
	}
}

// ListProcesses implements provider.Executor
func (g *Grid) ListProcesses(ctx context.Context, workerID, scriptID string) ([]*provider.Process, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var procs []*provider.Process
	for _, p := range g.processes {
		if p.proc.WorkerID == workerID && p.proc.ScriptID == scriptID {
			cp := p.proc
			procs = append(procs, &cp)
		}
	}
	return procs, nil
}

// Terminate implements provider.Executor. Killed processes never apply
// their effect.
func (g *Grid) Terminate(ctx context.Context, workerID, scriptID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, p := range g.processes {
		if p.proc.WorkerID == workerID && p.proc.ScriptID == scriptID {
			close(p.cancel)
			delete(g.processes, id)
		}
	}
	return nil
}

// Wait blocks until every simulated process has exited. Test helper.
func (g *Grid) Wait() {
	g.wg.Wait()
}
