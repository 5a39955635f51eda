package triggerhandlers

import (
	"context"
	"time"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/workflow"
	"github.com/fluxgraph/fluxgraph/engine/workflow/schedule"
)

// SchedulerHandler is the "scheduler" trigger-category entry: it
// delegates registration and retirement to the Scheduler, deriving
// a Schedule from the node's custom_config the same way the original
// event handler did.
type SchedulerHandler struct {
	Scheduler *schedule.Scheduler
}

// NewSchedulerHandler returns a Handler backed by sched.
func NewSchedulerHandler(sched *schedule.Scheduler) *SchedulerHandler {
	return &SchedulerHandler{Scheduler: sched}
}

// Handle derives a Schedule from node.CustomConfig and registers it, which
// always removes any prior entry for the workflow before re-inserting —
// safe to call for both initial activation and update.
func (h *SchedulerHandler) Handle(
	ctx context.Context,
	node workflow.TriggerNodeSnapshot,
	workflowID core.ID,
) error {
	sch, err := schedule.DeriveSchedule(workflowID, node.CustomConfig, time.Now().UTC())
	if err != nil {
		return err
	}
	return h.Scheduler.Register(ctx, sch)
}

// Cleanup retires every schedule entry for workflowID.
func (h *SchedulerHandler) Cleanup(
	ctx context.Context,
	_ workflow.TriggerNodeSnapshot,
	workflowID core.ID,
) error {
	return h.Scheduler.Remove(ctx, workflowID)
}
