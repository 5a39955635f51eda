package controlplane

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/triggerhandlers"
	"github.com/fluxgraph/fluxgraph/engine/workflow"
	"github.com/fluxgraph/fluxgraph/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// schedulerCategory is the one trigger category whose Cleanup is keyed
// purely by workflow_id (see triggerhandlers.SchedulerHandler), so it is
// always reachable even from a WORKFLOW_DELETED event whose payload
// carries no node list.
const schedulerCategory = "scheduler"

// Reconciler subscribes to the control-plane topic and routes each
// trigger node of the affected workflow to its registered handler:
// ACTIVATED/UPDATED call Handle, DEACTIVATED/DELETED call Cleanup. A
// handler category lookup failure or a handler error is logged and does
// not stop the reconciler — one workflow's misconfigured trigger never
// takes down processing for the rest.
type Reconciler struct {
	rdb *redis.Client
	topic string
	handlers *triggerhandlers.Registry
}

// NewReconciler constructs a Reconciler reading topic (defaults to
// workflow_events) and dispatching through handlers.
func NewReconciler(rdb *redis.Client, topic string, handlers *triggerhandlers.Registry) *Reconciler {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Reconciler{rdb: rdb, topic: topic, handlers: handlers}
}

// Run subscribes and processes events until ctx is canceled.
func (r *Reconciler) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	sub := r.rdb.Subscribe(ctx, r.topic)
	defer func() { _ = sub.Close() }()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				log.Error("control-plane: dropping malformed event payload", "error", err)
				continue
			}
			r.handle(ctx, evt)
		}
	}
}

func (r *Reconciler) handle(ctx context.Context, evt Event) {
	log := logger.FromContext(ctx)
	switch evt.Type {
	case EventActivated, EventUpdated:
		for _, node := range evt.Payload.Nodes {
			handler, err := r.handlers.Lookup(node.NodeCategory)
			if err != nil {
				log.Error("control-plane: no handler for trigger category, workflow becomes inert for this node",
					"workflow_id", evt.Payload.WorkflowID.String(), "category", node.NodeCategory)
				continue
			}
			if err := handler.Handle(ctx, node, evt.Payload.WorkflowID); err != nil {
				log.Error("control-plane: trigger handler Handle failed",
					"workflow_id", evt.Payload.WorkflowID.String(), "category", node.NodeCategory, "error", err)
			}
		}
	case EventDeactivated, EventDeleted:
		// WORKFLOW_DELETED carries no node list, but the scheduler's own
		// zset removal is keyed only by workflow_id, so it must run
		// unconditionally here rather than wait for a node to name the
		// "scheduler" category.
		r.cleanupCategory(ctx, schedulerCategory, evt.Payload.WorkflowID)
		for _, node := range evt.Payload.Nodes {
			if node.NodeCategory == schedulerCategory {
				continue // already cleaned up above
			}
			handler, err := r.handlers.Lookup(node.NodeCategory)
			if err != nil {
				continue
			}
			if err := handler.Cleanup(ctx, node, evt.Payload.WorkflowID); err != nil {
				log.Error("control-plane: trigger handler Cleanup failed",
					"workflow_id", evt.Payload.WorkflowID.String(), "category", node.NodeCategory, "error", err)
			}
		}
	default:
		log.Error("control-plane: unknown event type", "type", fmt.Sprint(evt.Type))
	}
}

// cleanupCategory looks up category and invokes its Cleanup for
// workflowID with a zero-value node snapshot. It is a no-op (logged,
// never fatal) when no handler is registered for category — the same
// tolerance the node-list loop applies.
func (r *Reconciler) cleanupCategory(ctx context.Context, category string, workflowID core.ID) {
	handler, err := r.handlers.Lookup(category)
	if err != nil {
		return
	}
	if err := handler.Cleanup(ctx, workflow.TriggerNodeSnapshot{NodeCategory: category}, workflowID); err != nil {
		logger.FromContext(ctx).Error("control-plane: trigger handler Cleanup failed",
			"workflow_id", workflowID.String(), "category", category, "error", err)
	}
}
