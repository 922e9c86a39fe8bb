package provider

import (
	"context"
	"time"

	"github.com/harrowd/harrow/pkg/types"
)

// Topology supplies the candidate worker and target node lists. Discovery
// and privilege escalation happen outside this process; only nodes we
// already hold admin rights on should be returned as workers.
type Topology interface {
	ListWorkers(ctx context.Context) ([]string, error)
	ListTargets(ctx context.Context) ([]string, error)
}

// State is a thin wrapper over the host's live node-state query. Results
// reflect the host at call time and are never cached by the core.
type State interface {
	WorkerState(ctx context.Context, id string) (*types.Worker, error)
	TargetState(ctx context.Context, id string) (*types.Target, error)
}

// Analysis exposes the host's growth/drain formulas as pure functions of
// target state.
type Analysis interface {
	// GrowthThreads returns the thread count required to multiply the
	// target's money by the desired factor
	GrowthThreads(ctx context.Context, targetID string, multiplier float64) (int, error)

	// HackDrainFraction returns the fraction of current money one hack
	// thread drains
	HackDrainFraction(ctx context.Context, targetID string) (float64, error)
}

// ExecRequest describes one remote process launch. Arguments cross the
// process boundary as the flat tuple (target, op, landTime).
type ExecRequest struct {
	ScriptID string
	WorkerID string
	Threads  int
	TargetID string
	Op       types.OpType
	LandTime time.Time
}

// Process identifies one running remote process
type Process struct {
	ID       string
	ScriptID string
	WorkerID string
	Threads  int
}

// Executor launches, inspects and kills remote processes. The launched
// process sleeps until its land time minus its own run duration and the
// host's fixed scheduling overhead, performs the single operation, and
// exits.
type Executor interface {
	Dispatch(ctx context.Context, req ExecRequest) (*Process, error)
	ListProcesses(ctx context.Context, workerID, scriptID string) ([]*Process, error)
	Terminate(ctx context.Context, workerID, scriptID string) error
}

// Deployer copies the operation script to a worker. Idempotent; called
// once per worker per tick before dispatch.
type Deployer interface {
	EnsureScriptPresent(ctx context.Context, workerID, scriptID string) error
}

// Host bundles the full collaborator surface the scheduler consumes
type Host interface {
	Topology
	State
	Analysis
	Executor
	Deployer
}
