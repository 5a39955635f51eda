package executor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/executor"
	"github.com/fluxgraph/fluxgraph/engine/handlers"
	"github.com/fluxgraph/fluxgraph/engine/workflow"
)

// fakeRepository serves a fixed graph of nodes/connections for one workflow
// id, standing in for engine/repository.Repository in these tests.
type fakeRepository struct {
	workflowID core.ID
	nodes      []workflow.WorkflowNode
	conns      []workflow.WorkflowConnection
}

func (r *fakeRepository) GetWorkflow(_ context.Context, id core.ID) (*workflow.Workflow, error) {
	return &workflow.Workflow{ID: id, Active: true}, nil
}

func (r *fakeRepository) ListNodes(_ context.Context, id core.ID) ([]workflow.WorkflowNode, error) {
	if id != r.workflowID {
		return nil, nil
	}
	return r.nodes, nil
}

func (r *fakeRepository) ListNodesByType(ctx context.Context, id core.ID, t workflow.NodeType) ([]workflow.WorkflowNode, error) {
	nodes, _ := r.ListNodes(ctx, id)
	var out []workflow.WorkflowNode
	for _, n := range nodes {
		if n.Definition.Type == t {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeRepository) ListConnections(_ context.Context, id core.ID) ([]workflow.WorkflowConnection, error) {
	if id != r.workflowID {
		return nil, nil
	}
	return r.conns, nil
}

// recordingHandler records every invocation's config/context and returns a
// canned result, letting tests assert on what each node actually saw.
type recordingHandler struct {
	mu      sync.Mutex
	calls   []map[string]any
	results map[string]any // node-category -> canned result
}

func (h *recordingHandler) Run(_ context.Context, config map[string]any, execCtx map[string]any) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, map[string]any{"config": config, "ctx": execCtx})
	return map[string]any{"status": core.StatusSuccess.String(), "config": config}, nil
}

func strPtr(s string) *string { return &s }

func node(id, category string, typ workflow.NodeType, cfg map[string]any) workflow.WorkflowNode {
	return workflow.WorkflowNode{
		ID:           core.ID(id),
		Definition:   workflow.NodeDefinition{Name: id, Type: typ, Category: category},
		CustomConfig: cfg,
	}
}

func TestExecuteWorkflow_TriggerFastPath(t *testing.T) {
	trigger := node("n1", "scheduler", workflow.NodeTypeTrigger, nil)
	repo := &fakeRepository{workflowID: "wf1", nodes: []workflow.WorkflowNode{trigger}}
	registry := handlers.NewRegistry()
	eng := executor.NewEngine(repo, registry, 2)

	err := eng.ExecuteWorkflow(context.Background(), "wf1", map[string]any{"seed": true})
	require.NoError(t, err)
}

func TestExecuteWorkflow_LinearChainTemplateResolution(t *testing.T) {
	trigger := node("n1", "scheduler", workflow.NodeTypeTrigger, nil)
	action := node("n2", "echo", workflow.NodeTypeAction, map[string]any{
		"to": "{{ parent_result.trigger_completed }}",
	})
	repo := &fakeRepository{
		workflowID: "wf1",
		nodes:      []workflow.WorkflowNode{trigger, action},
		conns: []workflow.WorkflowConnection{
			{WorkflowID: "wf1", FromNode: "n1", ToNode: "n2"},
		},
	}
	rec := &recordingHandler{}
	registry := handlers.NewRegistry()
	registry.Register("echo", rec)
	eng := executor.NewEngine(repo, registry, 2)

	err := eng.ExecuteWorkflow(context.Background(), "wf1", map[string]any{})
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, true, rec.calls[0]["config"].(map[string]any)["to"])
}

func TestExecuteWorkflow_FailureIsolation(t *testing.T) {
	trigger := node("n1", "scheduler", workflow.NodeTypeTrigger, nil)
	failing := node("n2", "boom", workflow.NodeTypeAction, nil)
	downstream := node("n3", "echo", workflow.NodeTypeAction, nil)
	repo := &fakeRepository{
		workflowID: "wf1",
		nodes:      []workflow.WorkflowNode{trigger, failing, downstream},
		conns: []workflow.WorkflowConnection{
			{WorkflowID: "wf1", FromNode: "n1", ToNode: "n2"},
			{WorkflowID: "wf1", FromNode: "n2", ToNode: "n3"},
		},
	}
	registry := handlers.NewRegistry()
	registry.Register("boom", handlers.ActionHandlerFunc(func(_ context.Context, _ map[string]any, _ map[string]any) (any, error) {
		return map[string]any{"status": core.StatusFailed.String()}, nil
	}))
	rec := &recordingHandler{}
	registry.Register("echo", rec)
	eng := executor.NewEngine(repo, registry, 2)

	err := eng.ExecuteWorkflow(context.Background(), "wf1", map[string]any{})
	require.NoError(t, err)

	// n3 is downstream of a FAILED node and must never run.
	assert.Empty(t, rec.calls)
}

func TestExecuteWorkflow_FanInJoinNeverReleasedByFailedParent(t *testing.T) {
	trigger := node("n1", "scheduler", workflow.NodeTypeTrigger, nil)
	failing := node("n2", "boom", workflow.NodeTypeAction, nil)
	succeeding := node("n3", "fine", workflow.NodeTypeAction, nil)
	join := node("n4", "echo", workflow.NodeTypeAction, nil)
	repo := &fakeRepository{
		workflowID: "wf1",
		nodes:      []workflow.WorkflowNode{trigger, failing, succeeding, join},
		conns: []workflow.WorkflowConnection{
			{WorkflowID: "wf1", FromNode: "n1", ToNode: "n2"},
			{WorkflowID: "wf1", FromNode: "n1", ToNode: "n3"},
			{WorkflowID: "wf1", FromNode: "n2", ToNode: "n4"},
			{WorkflowID: "wf1", FromNode: "n3", ToNode: "n4"},
		},
	}
	registry := handlers.NewRegistry()
	registry.Register("boom", handlers.ActionHandlerFunc(func(_ context.Context, _ map[string]any, _ map[string]any) (any, error) {
		return map[string]any{"status": core.StatusFailed.String()}, nil
	}))
	registry.Register("fine", handlers.ActionHandlerFunc(func(_ context.Context, _ map[string]any, _ map[string]any) (any, error) {
		time.Sleep(20 * time.Millisecond) // let n2's failure land in R well before n3 completes
		return map[string]any{"status": core.StatusSuccess.String()}, nil
	}))
	rec := &recordingHandler{}
	registry.Register("echo", rec)
	eng := executor.NewEngine(repo, registry, 4)

	err := eng.ExecuteWorkflow(context.Background(), "wf1", map[string]any{})
	require.NoError(t, err)

	// n4 joins on both n2 and n3. n2 failed, so n4's join can never
	// complete even though n3 (its other parent) succeeded — a failed
	// parent must never satisfy a sibling-fed join.
	assert.Empty(t, rec.calls)
}

func TestExecuteWorkflow_ConditionalEdgeGating(t *testing.T) {
	trigger := node("n1", "scheduler", workflow.NodeTypeTrigger, nil)
	gate := node("n2", "check", workflow.NodeTypeAction, nil)
	onSuccess := node("n3", "echo", workflow.NodeTypeAction, nil)
	repo := &fakeRepository{
		workflowID: "wf1",
		nodes:      []workflow.WorkflowNode{trigger, gate, onSuccess},
		conns: []workflow.WorkflowConnection{
			{WorkflowID: "wf1", FromNode: "n1", ToNode: "n2"},
			{WorkflowID: "wf1", FromNode: "n2", ToNode: "n3", Condition: strPtr("FAILED")},
		},
	}
	registry := handlers.NewRegistry()
	registry.Register("check", handlers.ActionHandlerFunc(func(_ context.Context, _ map[string]any, _ map[string]any) (any, error) {
		return map[string]any{"status": core.StatusSuccess.String()}, nil
	}))
	rec := &recordingHandler{}
	registry.Register("echo", rec)
	eng := executor.NewEngine(repo, registry, 2)

	err := eng.ExecuteWorkflow(context.Background(), "wf1", map[string]any{})
	require.NoError(t, err)

	// The only edge into n3 requires FAILED; n2 succeeded, so n3 never runs.
	assert.Empty(t, rec.calls)
}

func TestExecuteWorkflow_JoinWaitsForAllParents(t *testing.T) {
	trigger := node("n1", "scheduler", workflow.NodeTypeTrigger, nil)
	a := node("n2", "slow", workflow.NodeTypeAction, nil)
	b := node("n3", "fast", workflow.NodeTypeAction, nil)
	join := node("n4", "echo", workflow.NodeTypeAction, nil)
	repo := &fakeRepository{
		workflowID: "wf1",
		nodes:      []workflow.WorkflowNode{trigger, a, b, join},
		conns: []workflow.WorkflowConnection{
			{WorkflowID: "wf1", FromNode: "n1", ToNode: "n2"},
			{WorkflowID: "wf1", FromNode: "n1", ToNode: "n3"},
			{WorkflowID: "wf1", FromNode: "n2", ToNode: "n4"},
			{WorkflowID: "wf1", FromNode: "n3", ToNode: "n4"},
		},
	}
	registry := handlers.NewRegistry()
	registry.Register("slow", handlers.ActionHandlerFunc(func(_ context.Context, _ map[string]any, _ map[string]any) (any, error) {
		time.Sleep(20 * time.Millisecond)
		return map[string]any{"status": core.StatusSuccess.String()}, nil
	}))
	registry.Register("fast", handlers.ActionHandlerFunc(func(_ context.Context, _ map[string]any, _ map[string]any) (any, error) {
		return map[string]any{"status": core.StatusSuccess.String()}, nil
	}))
	rec := &recordingHandler{}
	registry.Register("echo", rec)
	eng := executor.NewEngine(repo, registry, 4)

	err := eng.ExecuteWorkflow(context.Background(), "wf1", map[string]any{})
	require.NoError(t, err)

	// n4 must run exactly once, only after both n2 and n3 completed.
	require.Len(t, rec.calls, 1)
	allParents := rec.calls[0]["ctx"].(map[string]any)["all_parent_results"].(map[string]any)
	assert.Len(t, allParents, 2)
}

func TestExecuteWorkflow_UnknownCategoryFailsNodeNotRun(t *testing.T) {
	trigger := node("n1", "scheduler", workflow.NodeTypeTrigger, nil)
	action := node("n2", "nope", workflow.NodeTypeAction, nil)
	repo := &fakeRepository{
		workflowID: "wf1",
		nodes:      []workflow.WorkflowNode{trigger, action},
		conns: []workflow.WorkflowConnection{
			{WorkflowID: "wf1", FromNode: "n1", ToNode: "n2"},
		},
	}
	registry := handlers.NewRegistry()
	eng := executor.NewEngine(repo, registry, 2)

	err := eng.ExecuteWorkflow(context.Background(), "wf1", map[string]any{})
	require.NoError(t, err)
}
