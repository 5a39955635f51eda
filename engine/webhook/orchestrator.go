package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/pkg/logger"
)

// DefaultStreamName matches engine/worker's consumer-side default so a
// forwarded webhook delivery reaches the same dispatcher as a scheduled
// trigger.
const DefaultStreamName = "workflow_triggers"

// DefaultDedupeKeyPrefix namespaces dedupe keys in Redis.
const DefaultDedupeKeyPrefix = "workflow_webhook_dedupe:"

// ErrUnknownSlug is returned when Process is called for a slug with no
// registered RegistryEntry.
var ErrUnknownSlug = errors.New("webhook: unknown slug")

// ErrSignatureInvalid is returned when a request's Verify header does not
// match its computed HMAC.
var ErrSignatureInvalid = errors.New("webhook: signature verification failed")

// Orchestrator owns the slug -> RegistryEntry map and the Redis client
// used both for idempotency bookkeeping and for forwarding accepted
// deliveries onto the trigger stream.
type Orchestrator struct {
	rdb        *redis.Client
	streamName string
	mu         sync.RWMutex
	registry   map[string]RegistryEntry
}

// NewOrchestrator constructs an Orchestrator against rdb.
func NewOrchestrator(rdb *redis.Client) *Orchestrator {
	return &Orchestrator{rdb: rdb, streamName: DefaultStreamName, registry: make(map[string]RegistryEntry)}
}

// Register installs (or replaces) entry under its Config.Slug.
func (o *Orchestrator) Register(entry RegistryEntry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.registry[entry.Config.Slug] = entry
}

// Unregister removes any entry registered under slug.
func (o *Orchestrator) Unregister(slug string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.registry, slug)
}

func (o *Orchestrator) lookup(slug string) (RegistryEntry, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	entry, ok := o.registry[slug]
	return entry, ok
}

// Process handles one inbound delivery for slug: verifying its signature
// (if configured), deduplicating it (if configured), applying its event
// filter (if configured), and — absent any of those rejecting it —
// appending a {workflow_id, context} record to the trigger stream exactly
// as engine/workflow/schedule.Scheduler does. Returns (false, nil) when
// the delivery was legitimately dropped (duplicate or filtered), and a
// non-nil error only for malformed input or an actual failure.
func (o *Orchestrator) Process(ctx context.Context, slug string, signature string, body []byte) (forwarded bool, err error) {
	log := logger.FromContext(ctx).With("slug", slug)
	entry, ok := o.lookup(slug)
	if !ok {
		return false, ErrUnknownSlug
	}
	cfg := entry.Config

	if cfg.Verify != nil {
		if !verifyHMAC(cfg.Verify.Secret, signature, body) {
			log.Warn("webhook: signature verification failed", "headers", core.RedactHeaders(headersFromSignature(cfg.Verify.Header, signature)))
			return false, core.NewError(ErrSignatureInvalid, "signature_invalid", nil)
		}
	}

	var payload map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return false, core.NewError(err, "invalid_body", map[string]any{"reason": core.RedactString(err.Error())})
		}
	}

	if cfg.Dedupe != nil {
		dup, err := o.checkAndSetDedupe(ctx, slug, cfg.Dedupe, body, payload)
		if err != nil {
			return false, core.NewError(err, "dedupe_check_failed", nil)
		}
		if dup {
			log.Info("webhook: dropping duplicate delivery")
			return false, nil
		}
	}

	if cfg.Events != nil && cfg.Events.Filter != "" {
		pass, err := evalFilter(cfg.Events.Filter, payload)
		if err != nil {
			return false, core.NewError(err, "event_filter_failed", nil)
		}
		if !pass {
			log.Info("webhook: delivery dropped by event filter")
			return false, nil
		}
	}

	if cfg.StaticContext != nil {
		base := core.NewInput(cfg.StaticContext)
		incoming := core.Input(payload)
		merged, err := base.Merge(&incoming)
		if err != nil {
			return false, core.NewError(err, "static_context_merge_failed", nil)
		}
		payload = merged.AsMap()
	}

	if err := o.forward(ctx, entry.WorkflowID, payload); err != nil {
		return false, core.NewError(err, "forward_failed", nil)
	}
	return true, nil
}

// headersFromSignature packs the single signature header the orchestrator
// read off the request into a map, purely so it can be run through
// RedactHeaders before logging; only the header name and raw value ever
// reach here, never the rest of the request.
func headersFromSignature(header, value string) map[string]string {
	if header == "" {
		return nil
	}
	return map[string]string{header: value}
}

func (o *Orchestrator) forward(ctx context.Context, workflowID core.ID, payload map[string]any) error {
	ctxJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return o.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: o.streamName,
		Values: map[string]any{
			"workflow_id": workflowID.String(),
			"context":     string(ctxJSON),
		},
	}).Err()
}

// checkAndSetDedupe derives the idempotency key for the delivery and
// atomically sets it with SETNX, reporting true when the key already
// existed (a duplicate delivery).
func (o *Orchestrator) checkAndSetDedupe(
	ctx context.Context, slug string, spec *DedupeSpec, body []byte, payload map[string]any,
) (bool, error) {
	key := DefaultDedupeKeyPrefix + slug + ":" + deriveDedupeKey(spec.KeyPath, body, payload)
	set, err := o.rdb.SetNX(ctx, key, "1", spec.TTL).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

// deriveDedupeKey keys on the gjson-extracted field when KeyPath is set,
// otherwise on the canonical fingerprint of the parsed payload: two
// deliveries whose bodies differ only by key order or whitespace collapse
// to the same key, which a raw byte hash would not do.
func deriveDedupeKey(keyPath string, body []byte, payload map[string]any) string {
	if keyPath == "" {
		return core.ETagFromAny(payload)
	}
	return gjson.GetBytes(body, keyPath).String()
}

func verifyHMAC(secret, signature string, body []byte) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// evalFilter compiles and runs expr against payload under the variable
// name "event". Compilation happens per call since filters are rarely
// hot-path-sensitive at webhook volumes and this keeps Orchestrator free
// of a program cache to invalidate on Config updates.
func evalFilter(expr string, payload map[string]any) (bool, error) {
	env, err := cel.NewEnv(cel.Variable("event", cel.DynType))
	if err != nil {
		return false, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, issues.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{"event": payload})
	if err != nil {
		return false, err
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("event filter must evaluate to a bool, got %T", out.Value())
	}
	return result, nil
}
