/*
Package provider defines the collaborator interfaces the scheduler core
consumes: topology discovery, live node state, growth/drain analysis,
remote execution and script deployment.

The core never implements these itself. A production deployment wires an
adapter over the host environment; tests and local runs use the in-memory
simulation in the sim subpackage.

Interfaces are intentionally narrow so fakes stay small:

  - Topology: which nodes exist (workers and targets)
  - State: a node's capacity or money/security snapshot at call time
  - Analysis: the host's growth and drain formulas, treated as pure
  - Executor: fire-and-forget process launch, process listing, kill
  - Deployer: idempotent script copy

Host composes all five for callers that need the full surface.
*/
package provider
