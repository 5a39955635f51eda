// Package triggerhandlers implements the trigger handler registry:
// the side-effect-side counterpart to the action handler registry,
// concerned with installing and tearing down external subscriptions
// (scheduler entries, remote webhook registrations) rather than running
// node actions.
package triggerhandlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/workflow"
)

// Handler performs the side effects of a trigger node's lifecycle:
// Handle installs (or re-installs) whatever external state the trigger
// category needs; Cleanup idempotently tears it down. Both must be
// idempotent since activation/update events may be delivered more than
// once (at-least-once control-plane delivery).
type Handler interface {
	Handle(ctx context.Context, node workflow.TriggerNodeSnapshot, workflowID core.ID) error
	Cleanup(ctx context.Context, node workflow.TriggerNodeSnapshot, workflowID core.ID) error
}

// Registry is a process-global, concurrency-safe map from trigger
// category string to Handler. Lookup of an unknown category is a typed
// error the caller logs and otherwise ignores rather than treating as
// fatal.
type Registry struct {
	mu sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register installs handler under category, overwriting any previous
// registration. Intended to be called from init in each handler's file.
func (r *Registry) Register(category string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[category] = handler
}

// ErrUnknownCategory is returned by Lookup when no handler is registered
// for the requested category.
type ErrUnknownCategory struct{ Category string }

func (e *ErrUnknownCategory) Error() string {
	return fmt.Sprintf("no trigger handler registered for category %q", e.Category)
}

// Lookup returns the Handler registered for category, or ErrUnknownCategory.
func (r *Registry) Lookup(category string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[category]
	if !ok {
		return nil, &ErrUnknownCategory{Category: category}
	}
	return h, nil
}
