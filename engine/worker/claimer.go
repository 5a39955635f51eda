package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/fluxgraph/fluxgraph/engine/infra/monitoring"
	"github.com/fluxgraph/fluxgraph/pkg/logger"
)

// Claimer reclaims pending entries idle for longer than MinIdleTime and
// redispatches them — resolving the open question of what happens when a
// consumer dies mid-handle and leaves a message neither acked nor retried.
// It is a separate loop from Dispatcher.Run so a slow claim pass never
// blocks ordinary trigger delivery.
type Claimer struct {
	d            *Dispatcher
	minIdleTime  time.Duration
	pollInterval time.Duration
	backoff      retry.Backoff
}

// NewClaimer builds a Claimer for d's stream/group, reclaiming entries
// that have sat unacknowledged for at least minIdleTime, checking every
// pollInterval, and backing off between individual claim attempts with an
// exponential-with-jitter schedule capped at 30s.
func NewClaimer(d *Dispatcher, minIdleTime, pollInterval time.Duration) *Claimer {
	b := retry.NewExponential(200 * time.Millisecond)
	b = retry.WithMaxDuration(30*time.Second, b)
	b = retry.WithJitter(100*time.Millisecond, b)
	return &Claimer{d: d, minIdleTime: minIdleTime, pollInterval: pollInterval, backoff: b}
}

// Run polls for and reclaims stale pending entries until ctx is canceled.
func (c *Claimer) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.claimOnce(ctx); err != nil {
				log.Error("claimer: pass failed, continuing", "error", err)
			}
		}
	}
}

// claimOnce lists pending entries idle past minIdleTime and claims each
// one onto this dispatcher's consumer, retrying the claim call itself
// with backoff since XCLAIM can transiently fail under Redis failover.
func (c *Claimer) claimOnce(ctx context.Context) error {
	log := logger.FromContext(ctx)
	pending, err := c.d.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.d.streamName,
		Group:  c.d.group,
		Start:  "-",
		End:    "+",
		Count:  64,
		Idle:   c.minIdleTime,
	}).Result()
	if err != nil {
		return err
	}
	for _, p := range pending {
		ids := []string{p.ID}
		var claimed []redis.XMessage
		claimErr := retry.Do(ctx, c.backoff, func(ctx context.Context) error {
			msgs, err := c.d.rdb.XClaim(ctx, &redis.XClaimArgs{
				Stream:   c.d.streamName,
				Group:    c.d.group,
				Consumer: c.d.consumer,
				MinIdle:  c.minIdleTime,
				Messages: ids,
			}).Result()
			if err != nil {
				return retry.RetryableError(err)
			}
			claimed = msgs
			return nil
		})
		if claimErr != nil {
			log.Error("claimer: failed to claim pending entry", "message_id", p.ID, "error", claimErr)
			continue
		}
		log.Info("claimer: reclaimed pending entry", "message_id", p.ID, "idle", p.Idle.String(), "prior_consumer", p.Consumer)
		monitoring.DispatcherClaimedTotal.Inc()
		for _, msg := range claimed {
			c.d.handle(ctx, msg)
		}
	}
	return nil
}
