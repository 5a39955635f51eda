// Package controlplane implements control-plane publisher and
// the event-bus wiring that couples it to the scheduler and the trigger
// handler registry: CRUD effects on workflows become lifecycle events on
// a pub/sub topic, and those events drive schedule registration and
// remote-subscription side effects.
package controlplane

import (
	"time"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/workflow"
)

// DefaultTopic is the pub/sub channel name the control plane publishes on.
const DefaultTopic = "workflow_events"

// EventType is one of the four workflow lifecycle events.
type EventType = core.EvtType

const (
	EventActivated = core.EvtWorkflowActivated
	EventDeactivated = core.EvtWorkflowDeactivated
	EventUpdated = core.EvtWorkflowUpdated
	EventDeleted = core.EvtWorkflowDeleted
)

// Payload carries the workflow_id and, for every event except DELETED,
// the workflow's trigger-typed nodes.
type Payload struct {
	WorkflowID core.ID `json:"workflow_id"`
	Nodes []workflow.TriggerNodeSnapshot `json:"nodes,omitempty"`
}

// Event is the JSON envelope published on the control-plane topic:
// `{type, timestamp (ISO-8601), payload}`.
type Event struct {
	Type EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload Payload `json:"payload"`
}
