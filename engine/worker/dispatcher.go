// Package worker implements the trigger dispatcher: a consumer-group
// reader over the workflow_triggers stream that turns each trigger record
// into one executor.Engine.ExecuteWorkflow call, acknowledging on success
// and leaving failures unacknowledged for the claimer to retry.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/executor"
	"github.com/fluxgraph/fluxgraph/engine/infra/monitoring"
	"github.com/fluxgraph/fluxgraph/pkg/logger"
)

// Default wire-level names, matching engine/workflow/schedule's producer side.
const (
	DefaultStreamName = "workflow_triggers"
	DefaultGroup      = "workflow_group"
)

// Services is the process-scoped collaborator bag injected under
// core.ServicesKey into every trigger context before it reaches the
// executor, letting action handlers reach shared clients without the
// executor importing them directly.
type Services map[string]any

// Dispatcher reads trigger records off a Redis stream consumer group and
// hands each one to an executor.Engine.
type Dispatcher struct {
	rdb          *redis.Client
	engine       *executor.Engine
	streamName   string
	group        string
	consumer     string
	services     Services
	blockTimeout time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithStreamName(name string) Option { return func(d *Dispatcher) { d.streamName = name } }
func WithGroup(name string) Option      { return func(d *Dispatcher) { d.group = name } }
func WithConsumer(name string) Option   { return func(d *Dispatcher) { d.consumer = name } }
func WithServices(s Services) Option    { return func(d *Dispatcher) { d.services = s } }
func WithBlockTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.blockTimeout = t }
}

// NewDispatcher constructs a Dispatcher. consumer defaults to
// "<hostname>-<pid>" when not overridden via WithConsumer, so that every
// process in a deployment identifies itself uniquely within the group.
func NewDispatcher(rdb *redis.Client, eng *executor.Engine, opts ...Option) *Dispatcher {
	host, _ := os.Hostname()
	d := &Dispatcher{
		rdb:          rdb,
		engine:       eng,
		streamName:   DefaultStreamName,
		group:        DefaultGroup,
		consumer:     fmt.Sprintf("%s-%d", host, os.Getpid()),
		blockTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// EnsureGroup creates the consumer group at the stream's current tail if
// it does not already exist, so a fresh deployment doesn't replay history.
func (d *Dispatcher) EnsureGroup(ctx context.Context) error {
	err := d.rdb.XGroupCreateMkStream(ctx, d.streamName, d.group, "$").Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		if isBusyGroupErr(err) {
			return nil
		}
		return fmt.Errorf("failed to create consumer group %s on %s: %w", d.group, d.streamName, err)
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

// Run reads and dispatches trigger records until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	if err := d.EnsureGroup(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		streams, err := d.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    d.group,
			Consumer: d.consumer,
			Streams:  []string{d.streamName, ">"},
			Count:    16,
			Block:    d.blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			log.Error("dispatcher: read failed, retrying", "error", err)
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				d.handle(ctx, msg)
			}
		}
	}
}

// handle processes a single trigger record: parse, run, ack on success.
// A failure is logged and the message left unacknowledged — the claimer
// owns retrying it.
func (d *Dispatcher) handle(ctx context.Context, msg redis.XMessage) {
	log := logger.FromContext(ctx).With("message_id", msg.ID)
	workflowID, triggerCtx, err := parseTriggerMessage(msg)
	if err != nil {
		// A parse failure is logged and left unacknowledged, not acked —
		// the entry lingers for the claimer's retry infra exactly like any
		// other unprocessed failure.
		log.Error("dispatcher: unparsable trigger record, leaving unacked", "error", err)
		monitoring.DispatcherProcessedTotal.WithLabelValues("failed").Inc()
		return
	}
	if d.services != nil {
		triggerCtx[core.ServicesKey] = map[string]any(d.services)
	}
	if err := d.engine.ExecuteWorkflow(ctx, workflowID, triggerCtx); err != nil {
		log.Error("dispatcher: workflow execution failed, leaving unacked", "workflow_id", workflowID.String(), "error", err)
		monitoring.DispatcherProcessedTotal.WithLabelValues("failed").Inc()
		return
	}
	if err := d.rdb.XAck(ctx, d.streamName, d.group, msg.ID).Err(); err != nil {
		log.Error("dispatcher: ack failed", "message_id", msg.ID, "error", err)
		return
	}
	monitoring.DispatcherProcessedTotal.WithLabelValues("acked").Inc()
}

func parseTriggerMessage(msg redis.XMessage) (core.ID, map[string]any, error) {
	rawID, _ := msg.Values["workflow_id"].(string)
	if rawID == "" {
		return "", nil, fmt.Errorf("trigger record %s missing workflow_id", msg.ID)
	}
	workflowID, err := core.ParseID(rawID)
	if err != nil {
		return "", nil, fmt.Errorf("trigger record %s has invalid workflow_id: %w", msg.ID, err)
	}
	triggerCtx := make(map[string]any)
	if raw, ok := msg.Values["context"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &triggerCtx); err != nil {
			return "", nil, fmt.Errorf("trigger record %s has invalid context: %w", msg.ID, err)
		}
	}
	return workflowID, triggerCtx, nil
}
