package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/workflow"
	"github.com/fluxgraph/fluxgraph/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Publisher emits workflow lifecycle events on a Redis pub/sub topic.
// Publication is fire-and-forget with best-effort per-workflow-id
// ordering: a single Publisher instance is sufficient since go-redis
// serializes Publish calls on the underlying connection.
type Publisher struct {
	rdb *redis.Client
	topic string
}

// NewPublisher constructs a Publisher against rdb, publishing to topic
// (defaults to workflow_events when empty).
func NewPublisher(rdb *redis.Client, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{rdb: rdb, topic: topic}
}

func (p *Publisher) publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal control-plane event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.topic, body).Err(); err != nil {
		logger.FromContext(ctx).Error("control-plane publish failed", "type", evt.Type, "error", err)
		return fmt.Errorf("failed to publish %s: %w", evt.Type, err)
	}
	return nil
}

// Activated publishes WORKFLOW_ACTIVATED with the workflow's trigger nodes.
func (p *Publisher) Activated(ctx context.Context, workflowID core.ID, nodes []workflow.TriggerNodeSnapshot) error {
	return p.publish(ctx, Event{
		Type: EventActivated,
		Timestamp: time.Now().UTC(),
		Payload: Payload{WorkflowID: workflowID, Nodes: nodes},
	})
}

// Deactivated publishes WORKFLOW_DEACTIVATED.
func (p *Publisher) Deactivated(ctx context.Context, workflowID core.ID, nodes []workflow.TriggerNodeSnapshot) error {
	return p.publish(ctx, Event{
		Type: EventDeactivated,
		Timestamp: time.Now().UTC(),
		Payload: Payload{WorkflowID: workflowID, Nodes: nodes},
	})
}

// Updated publishes WORKFLOW_UPDATED. Consumers must treat this
// idempotently: it may be delivered more than once for the same
// logical update.
func (p *Publisher) Updated(ctx context.Context, workflowID core.ID, nodes []workflow.TriggerNodeSnapshot) error {
	return p.publish(ctx, Event{
		Type: EventUpdated,
		Timestamp: time.Now().UTC(),
		Payload: Payload{WorkflowID: workflowID, Nodes: nodes},
	})
}

// Deleted publishes WORKFLOW_DELETED with only the workflow_id.
func (p *Publisher) Deleted(ctx context.Context, workflowID core.ID) error {
	return p.publish(ctx, Event{
		Type: EventDeleted,
		Timestamp: time.Now().UTC(),
		Payload: Payload{WorkflowID: workflowID},
	})
}
