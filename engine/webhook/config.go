// Package webhook implements the inbound webhook-style trigger
// surface: an HTTP endpoint per registered slug that verifies, dedupes,
// optionally filters, and forwards inbound payloads onto the same
// workflow_triggers stream the scheduler writes to.
package webhook

import (
	"time"

	"github.com/fluxgraph/fluxgraph/engine/core"
)

// VerifySpec describes how to authenticate an inbound request: an HMAC
// of the raw body, hex-encoded, carried in Header and keyed by Secret.
// A nil VerifySpec means the slug accepts unauthenticated requests.
type VerifySpec struct {
	Header string
	Secret string
}

// DedupeSpec describes idempotent-delivery handling: KeyPath is a gjson
// path into the JSON body used to derive the idempotency key (the whole
// body is hashed when KeyPath is empty), TTL bounds how long a key is
// remembered. A nil DedupeSpec disables dedupe for the slug.
type DedupeSpec struct {
	KeyPath string
	TTL time.Duration
}

// EventConfig optionally narrows which deliveries are forwarded: Filter
// is a CEL expression evaluated against the parsed JSON body (as a
// map[string]any named `event`); a false result drops the delivery
// without forwarding it and without an error. Empty Filter forwards
// everything.
type EventConfig struct {
	Filter string
}

// Config is one registered webhook slug's full trigger configuration.
type Config struct {
	Slug   string
	Verify *VerifySpec
	Dedupe *DedupeSpec
	Events *EventConfig
	// StaticContext is merged under the parsed JSON body before the
	// delivery is forwarded, letting a slug stamp fixed fields (e.g. a
	// source tag) onto every trigger context it produces. The body wins
	// on key collisions.
	StaticContext map[string]any
}

// RegistryEntry binds a Config to the workflow whose trigger node it
// feeds.
type RegistryEntry struct {
	WorkflowID core.ID
	Config Config
}
