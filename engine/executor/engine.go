// Package executor implements the DAG executor: given a
// (workflow_id, context), it loads the workflow's nodes and connections,
// builds forward/reverse adjacency once, and evaluates the graph
// concurrently with a bounded worker pool, honoring join synchronization,
// trigger-node fast paths, template resolution, and edge conditions.
package executor

import (
	"context"
	"fmt"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/handlers"
	"github.com/fluxgraph/fluxgraph/engine/repository"
	"github.com/fluxgraph/fluxgraph/pkg/logger"
)

// DefaultPoolSize is the default worker pool parallelism.
const DefaultPoolSize = 8

// Engine evaluates workflow DAGs. One Engine may serve many concurrent
// ExecuteWorkflow invocations; all per-invocation state lives in the
// invocation type, never on Engine itself.
type Engine struct {
	repo repository.Repository
	actions *handlers.Registry
	poolSize int
}

// NewEngine constructs an Engine against repo and actions, with the given
// worker pool size (0 selects DefaultPoolSize).
func NewEngine(repo repository.Repository, actions *handlers.Registry, poolSize int) *Engine {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	return &Engine{repo: repo, actions: actions, poolSize: poolSize}
}

// ExecuteWorkflow runs one invocation of workflowID rooted at triggerCtx.
// It blocks until every reachable node has either completed, failed, or
// been starved by a failed/never-ready parent.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID core.ID, triggerCtx map[string]any) error {
	log := logger.FromContext(ctx)
	nodes, err := e.repo.ListNodes(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to load nodes for workflow %s: %w", workflowID, err)
	}
	conns, err := e.repo.ListConnections(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to load connections for workflow %s: %w", workflowID, err)
	}
	inv := newInvocation(e, workflowID, nodes, conns)
	if triggerCtx == nil {
		triggerCtx = make(map[string]any)
	}
	inv.baseCtx = triggerCtx
	initial := inv.initialNodes()
	if len(initial) == 0 {
		log.Error("workflow has no start nodes", "workflow_id", workflowID.String())
		return nil
	}
	for _, n := range initial {
		inv.submit(ctx, n)
	}
	inv.wait()
	return nil
}
