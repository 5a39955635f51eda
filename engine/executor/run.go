package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/infra/monitoring"
	"github.com/fluxgraph/fluxgraph/engine/workflow"
	"github.com/fluxgraph/fluxgraph/pkg/logger"
	"github.com/fluxgraph/fluxgraph/pkg/tplfield"
)

// runNode implements the per-node procedure:
//  1. join readiness was already decided by the caller (readyToSubmit) —
//     by the time a non-start node reaches here every parent already has
//     an entry in R, so there is nothing left to wait on here.
//  2. build the enhanced context (parent_result / parent_<id>_result /
//     all_parent_results) from R.
//  3. trigger nodes short-circuit to a fixed {trigger_completed: true}
//     result without touching the handler registry.
//  4. resolve the node's custom_config against the enhanced context.
//  5. dispatch to the action handler registered for the node's category.
//  6. commit the result into R under the shared lock.
//  7. submit children: for each outgoing edge, honor any condition gate,
//     then submit the target iff every one of its parents is now in R.
func (inv *invocation) runNode(ctx context.Context, node workflow.WorkflowNode) {
	log := logger.FromContext(ctx).With(
		"workflow_id", inv.workflowID.String(),
		"node_id", node.ID.String(),
		"category", node.Category(),
	)

	execCtx := inv.enhancedContext(node.ID)
	start := time.Now()

	var (
		result any
		status string
	)
	if node.Definition.Type.IsTrigger() {
		result = map[string]any{"trigger_completed": true}
		status = core.StatusSuccess.String()
	} else {
		resolved, _ := tplfield.Resolve(node.CustomConfig, execCtx).(map[string]any)
		handler, err := inv.engine.actions.Lookup(node.Category())
		if err != nil {
			log.Error("no handler for node category", "err", err)
			result = map[string]any{"status": core.StatusFailed.String(), "error": err.Error()}
			status = core.StatusFailed.String()
		} else {
			out, runErr := handler.Run(ctx, resolved, execCtx)
			if runErr != nil {
				log.Error("node action failed", "err", runErr)
				result = map[string]any{"status": core.StatusFailed.String(), "error": runErr.Error()}
				status = core.StatusFailed.String()
			} else {
				result = out
				status = resultStatus(out)
			}
		}
	}

	monitoring.ExecutorNodeDuration.WithLabelValues(node.Category(), status).Observe(time.Since(start).Seconds())
	log.Info("node completed", "status", status)

	if status == core.StatusFailed.String() {
		// A failed node's result is never committed to R. A sibling
		// feeding the same join must never see this node as done —
		// committing the failure sentinel would let readyToSubmit count it
		// as a present parent and wrongly release the join. The node's
		// descendants are therefore never scheduled, whether direct or
		// transitive: we simply stop propagating from here, leaving them
		// permanently unready.
		return
	}

	inv.commit(node.ID, result)

	for _, edge := range inv.forward[node.ID] {
		if edge.Condition != nil && *edge.Condition != status {
			continue
		}
		child, ok := inv.nodes[edge.ToNode]
		if !ok {
			log.Warn("connection references unknown node", "to_node", edge.ToNode.String())
			continue
		}
		if inv.readyToSubmit(child.ID) {
			inv.submit(ctx, child)
		}
	}
}

// enhancedContext clones the invocation's base context and layers in
// every parent's result under parent_<id>_result / all_parent_results,
// plus the bare parent_result convenience key when there is exactly one
// parent.
func (inv *invocation) enhancedContext(nodeID core.ID) map[string]any {
	cloned, err := core.CloneExecutionContext(inv.baseCtx)
	if err != nil {
		cloned = make(map[string]any)
	}
	parents := inv.reverse[nodeID]
	if len(parents) == 0 {
		return cloned
	}
	all := make(map[string]any, len(parents))
	for _, parentID := range parents {
		result, ok := inv.parentResult(parentID)
		if !ok {
			continue
		}
		cloned[fmt.Sprintf("parent_%s_result", parentID.String())] = result
		all[parentID.String()] = result
		if len(parents) == 1 {
			cloned["parent_result"] = result
		}
	}
	cloned["all_parent_results"] = all
	return cloned
}

// resultStatus extracts the "status" field a handler result carries for
// edge-condition gating, defaulting to SUCCESS when the handler returned
// a value with no explicit status.
func resultStatus(result any) string {
	m, ok := result.(map[string]any)
	if !ok {
		return core.StatusSuccess.String()
	}
	s, ok := m["status"].(string)
	if !ok || s == "" {
		return core.StatusSuccess.String()
	}
	return s
}
