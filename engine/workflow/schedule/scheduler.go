package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/infra/monitoring"
	"github.com/fluxgraph/fluxgraph/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Default wire-level names. Callers may override via NewScheduler's
// options for testing or multi-tenant deployments.
const (
	DefaultZSetKey      = "workflow_schedules_zset"
	DefaultStreamName   = "workflow_triggers"
	DefaultTickInterval = time.Second
)

// Scheduler owns the workflow_schedules_zset sorted set and drains due
// entries onto the trigger stream. A single active Scheduler per
// deployment is assumed.
type Scheduler struct {
	rdb          *redis.Client
	zsetKey      string
	streamName   string
	tickInterval time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithZSetKey overrides the sorted-set key (default workflow_schedules_zset).
func WithZSetKey(key string) Option { return func(s *Scheduler) { s.zsetKey = key } }

// WithStreamName overrides the trigger stream name (default workflow_triggers).
func WithStreamName(name string) Option { return func(s *Scheduler) { s.streamName = name } }

// WithTickInterval overrides the drain loop's tick period (default 1s).
func WithTickInterval(d time.Duration) Option { return func(s *Scheduler) { s.tickInterval = d } }

// NewScheduler constructs a Scheduler against rdb.
func NewScheduler(rdb *redis.Client, opts ...Option) *Scheduler {
	s := &Scheduler{
		rdb:          rdb,
		zsetKey:      DefaultZSetKey,
		streamName:   DefaultStreamName,
		tickInterval: DefaultTickInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register inserts sch at score sch.NextRun, first removing any prior
// entry for the same workflow_id. Update and Register share this
// implementation: an update is simply "remove by workflow_id, then
// re-insert".
func (s *Scheduler) Register(ctx context.Context, sch *Schedule) error {
	if err := s.removeByWorkflowID(ctx, sch.WorkflowID); err != nil {
		return fmt.Errorf("failed to clear prior schedule for %s: %w", sch.WorkflowID, err)
	}
	payload, err := json.Marshal(sch)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}
	member := redis.Z{Score: float64(sch.NextRun.UTC().Unix()), Member: payload}
	if err := s.rdb.ZAdd(ctx, s.zsetKey, member).Err(); err != nil {
		return fmt.Errorf("failed to register schedule: %w", err)
	}
	return nil
}

// Remove retires every schedule entry belonging to workflowID.
func (s *Scheduler) Remove(ctx context.Context, workflowID core.ID) error {
	return s.removeByWorkflowID(ctx, workflowID)
}

// removeByWorkflowID performs a linear scan-and-remove, acceptable at
// expected cardinalities (≤10^4 entries): schedules are identified by
// workflow_id inside their JSON payload, not by a separate index, so a
// full range is required.
func (s *Scheduler) removeByWorkflowID(ctx context.Context, workflowID core.ID) error {
	members, err := s.rdb.ZRange(ctx, s.zsetKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to scan schedules: %w", err)
	}
	var toRemove []any
	for _, raw := range members {
		var sch Schedule
		if err := json.Unmarshal([]byte(raw), &sch); err != nil {
			continue
		}
		if sch.WorkflowID == workflowID {
			toRemove = append(toRemove, raw)
		}
	}
	if len(toRemove) == 0 {
		return nil
	}
	return s.rdb.ZRem(ctx, s.zsetKey, toRemove...).Err()
}

// Tick performs one drain pass: range workflow_schedules_zset by score in
// [0, now], and for every due entry, emit a trigger record, remove the
// entry, and reinsert it at its next occurrence unless a termination
// predicate fired. Returns the number of trigger records emitted.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)
	now := time.Now().UTC()
	due, err := s.rdb.ZRangeByScore(ctx, s.zsetKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		log.Error("scheduler tick: failed to range due schedules", "error", err)
		return 0, fmt.Errorf("failed to range due schedules: %w", err)
	}
	emitted := 0
	for _, raw := range due {
		var sch Schedule
		if err := json.Unmarshal([]byte(raw), &sch); err != nil {
			log.Error("scheduler tick: dropping unparsable schedule entry", "error", err)
			_ = s.rdb.ZRem(ctx, s.zsetKey, raw).Err()
			continue
		}
		if err := s.drainOne(ctx, raw, &sch, now); err != nil {
			log.Error("scheduler tick: failed to drain schedule",
				"workflow_id", sch.WorkflowID.String(), "error", err)
			continue
		}
		emitted++
	}
	monitoring.SchedulerDrainedTotal.Add(float64(emitted))
	return emitted, nil
}

func (s *Scheduler) drainOne(ctx context.Context, raw string, sch *Schedule, now time.Time) error {
	if err := s.emitTrigger(ctx, sch.WorkflowID, sch.Context); err != nil {
		return fmt.Errorf("failed to emit trigger: %w", err)
	}
	if err := s.rdb.ZRem(ctx, s.zsetKey, raw).Err(); err != nil {
		return fmt.Errorf("failed to remove drained entry: %w", err)
	}
	retired := sch.Advance(now)
	if retired {
		return nil
	}
	payload, err := json.Marshal(sch)
	if err != nil {
		return fmt.Errorf("failed to marshal re-inserted schedule: %w", err)
	}
	return s.rdb.ZAdd(ctx, s.zsetKey, redis.Z{
		Score:  float64(sch.NextRun.UTC().Unix()),
		Member: payload,
	}).Err()
}

// emitTrigger appends a {workflow_id, context} record to workflow_triggers.
func (s *Scheduler) emitTrigger(ctx context.Context, workflowID core.ID, triggerCtx map[string]any) error {
	ctxJSON, err := json.Marshal(triggerCtx)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger context: %w", err)
	}
	return s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.streamName,
		Values: map[string]any{
			"workflow_id": workflowID.String(),
			"context":     string(ctxJSON),
		},
	}).Err()
}

// Run drains on every tick until ctx is canceled. A transient store error
// never stops the loop: it is logged and the next tick proceeds,
// accepting at-least-once firing as the consequence.
func (s *Scheduler) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				log.Error("scheduler tick failed, continuing", "error", err)
			}
		}
	}
}
