package executor

import (
	"context"
	"sync"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/workflow"
)

// invocation holds all state for a single ExecuteWorkflow call: the
// adjacency built once at load time, the shared result map R, the
// once-only submission guard that implements the join barrier without
// sleep-polling — a child is submitted exactly once, by whichever parent
// completion observes every one of its parents present in R — and the
// bounded worker pool.
type invocation struct {
	engine *Engine
	workflowID core.ID
	baseCtx map[string]any

	nodes map[core.ID]workflow.WorkflowNode
	forward map[core.ID][]workflow.WorkflowConnection // keyed by FromNode
	reverse map[core.ID][]core.ID // keyed by ToNode, parent ids

	mu sync.Mutex
	results map[core.ID]any // R: node id -> result, populated once per node
	submitted map[core.ID]bool

	sem chan struct{}
	wg sync.WaitGroup
}

func newInvocation(e *Engine, workflowID core.ID, nodes []workflow.WorkflowNode, conns []workflow.WorkflowConnection) *invocation {
	inv := &invocation{
		engine: e,
		workflowID: workflowID,
		nodes: make(map[core.ID]workflow.WorkflowNode, len(nodes)),
		forward: make(map[core.ID][]workflow.WorkflowConnection),
		reverse: make(map[core.ID][]core.ID),
		results: make(map[core.ID]any, len(nodes)),
		submitted: make(map[core.ID]bool, len(nodes)),
		sem: make(chan struct{}, e.poolSize),
	}
	for _, n := range nodes {
		inv.nodes[n.ID] = n
	}
	for _, c := range conns {
		inv.forward[c.FromNode] = append(inv.forward[c.FromNode], c)
		inv.reverse[c.ToNode] = append(inv.reverse[c.ToNode], c.FromNode)
	}
	return inv
}

// initialNodes returns every node with no incoming connection — the set
// the executor submits immediately when a run starts.
func (inv *invocation) initialNodes() []workflow.WorkflowNode {
	var out []workflow.WorkflowNode
	for id, n := range inv.nodes {
		if len(inv.reverse[id]) == 0 {
			inv.mu.Lock()
			inv.submitted[id] = true
			inv.mu.Unlock()
			out = append(out, n)
		}
	}
	return out
}

// submit schedules node to run on the worker pool. It never blocks the
// caller beyond acquiring a pool slot asynchronously: the actual wait for
// a free slot happens inside the spawned goroutine so that a full pool
// never deadlocks a chain of synchronous submitDownstream calls.
func (inv *invocation) submit(ctx context.Context, node workflow.WorkflowNode) {
	inv.wg.Add(1)
	go func() {
		defer inv.wg.Done()
		select {
		case inv.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-inv.sem }()
		inv.runNode(ctx, node)
	}()
}

func (inv *invocation) wait() {
	inv.wg.Wait()
}

// commit stores node's result under inv.mu for later join-readiness
// checks and for enhancedContext to read back.
func (inv *invocation) commit(id core.ID, result any) {
	inv.mu.Lock()
	inv.results[id] = result
	inv.mu.Unlock()
}

// readyToSubmit is the join barrier: it reports whether every parent of
// childID already has a result in R, and if so marks childID submitted
// (idempotently, exactly once) in the same critical section. Two parents
// racing to complete the same child can only ever have one of them win
// this check-and-mark, since it runs under a single mutex.
func (inv *invocation) readyToSubmit(childID core.ID) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.submitted[childID] {
		return false
	}
	for _, parentID := range inv.reverse[childID] {
		if _, done := inv.results[parentID]; !done {
			return false
		}
	}
	inv.submitted[childID] = true
	return true
}

func (inv *invocation) parentResult(id core.ID) (any, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	r, ok := inv.results[id]
	return r, ok
}
