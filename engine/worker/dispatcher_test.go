package worker_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/executor"
	"github.com/fluxgraph/fluxgraph/engine/handlers"
	"github.com/fluxgraph/fluxgraph/engine/worker"
	"github.com/fluxgraph/fluxgraph/engine/workflow"
)

type oneWorkflowRepo struct {
	id    core.ID
	nodes []workflow.WorkflowNode
}

func (r *oneWorkflowRepo) GetWorkflow(_ context.Context, id core.ID) (*workflow.Workflow, error) {
	return &workflow.Workflow{ID: id, Active: true}, nil
}
func (r *oneWorkflowRepo) ListNodes(_ context.Context, id core.ID) ([]workflow.WorkflowNode, error) {
	if id != r.id {
		return nil, nil
	}
	return r.nodes, nil
}
func (r *oneWorkflowRepo) ListNodesByType(_ context.Context, _ core.ID, _ workflow.NodeType) ([]workflow.WorkflowNode, error) {
	return nil, nil
}
func (r *oneWorkflowRepo) ListConnections(_ context.Context, _ core.ID) ([]workflow.WorkflowConnection, error) {
	return nil, nil
}

func TestDispatcher_ReadsAndAcksTriggerRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	wfID := core.MustNewID()
	repo := &oneWorkflowRepo{id: wfID, nodes: []workflow.WorkflowNode{
		{ID: core.MustNewID(), Definition: workflow.NodeDefinition{Type: workflow.NodeTypeTrigger, Category: "scheduler"}},
	}}
	registry := handlers.NewRegistry()
	eng := executor.NewEngine(repo, registry, 2)

	d := worker.NewDispatcher(rdb, eng, worker.WithBlockTimeout(50*time.Millisecond))
	require.NoError(t, d.EnsureGroup(context.Background()))

	ctxJSON, err := json.Marshal(map[string]any{"seed": true})
	require.NoError(t, err)
	_, err = rdb.XAdd(context.Background(), &redis.XAddArgs{
		Stream: worker.DefaultStreamName,
		Values: map[string]any{"workflow_id": wfID.String(), "context": string(ctxJSON)},
	}).Result()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := rdb.XLen(context.Background(), worker.DefaultStreamName).Result()
		if err != nil || n != 1 {
			return false
		}
		pending, err := rdb.XPending(context.Background(), worker.DefaultStreamName, worker.DefaultGroup).Result()
		return err == nil && pending.Count == 0
	}, 1*time.Second, 20*time.Millisecond, "trigger record should be acked after processing")
}

// TestDispatcher_UnparsableRecordLeftUnacked asserts the trigger-stream
// parse-failure policy: log, do NOT ack, entry lingers for the claimer's
// retry infra.
func TestDispatcher_UnparsableRecordLeftUnacked(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := &oneWorkflowRepo{id: core.MustNewID()}
	registry := handlers.NewRegistry()
	eng := executor.NewEngine(repo, registry, 2)

	d := worker.NewDispatcher(rdb, eng, worker.WithBlockTimeout(50*time.Millisecond))
	require.NoError(t, d.EnsureGroup(context.Background()))

	_, err := rdb.XAdd(context.Background(), &redis.XAddArgs{
		Stream: worker.DefaultStreamName,
		Values: map[string]any{"context": `{}`}, // missing workflow_id
	}).Result()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	require.Eventually(t, func() bool {
		pending, err := rdb.XPending(context.Background(), worker.DefaultStreamName, worker.DefaultGroup).Result()
		return err == nil && pending.Count == 1
	}, 1*time.Second, 20*time.Millisecond, "unparsable record must remain pending, never acked")
}
