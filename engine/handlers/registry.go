// Package handlers implements the node handler registry: the
// process-global map from node category string to action implementation
// that is the DAG executor's sole coupling to actual action code.
package handlers

import (
	"context"
	"fmt"
	"sync"
)

// ActionHandler runs one action node's resolved config against its
// enhanced context and returns a result. The result is typically a
// map[string]any with a "status" key (used for edge-condition gating)
// but may be any JSON-serializable value.
type ActionHandler interface {
	Run(ctx context.Context, config map[string]any, execCtx map[string]any) (any, error)
}

// ActionHandlerFunc adapts a plain function to the ActionHandler interface.
type ActionHandlerFunc func(ctx context.Context, config map[string]any, execCtx map[string]any) (any, error)

func (f ActionHandlerFunc) Run(ctx context.Context, config map[string]any, execCtx map[string]any) (any, error) {
	return f(ctx, config, execCtx)
}

// Registry is a concurrency-safe map from node category to ActionHandler.
type Registry struct {
	mu sync.RWMutex
	handlers map[string]ActionHandler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]ActionHandler)}
}

// Register installs handler under category, overwriting any prior entry.
func (r *Registry) Register(category string, handler ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[category] = handler
}

// ErrUnknownCategory is returned by Lookup when category has no handler.
type ErrUnknownCategory struct{ Category string }

func (e *ErrUnknownCategory) Error() string {
	return fmt.Sprintf("no action handler registered for category %q", e.Category)
}

// Lookup returns the ActionHandler registered for category, or
// ErrUnknownCategory: lookup by an unknown category fails fast with a
// descriptive error rather than silently no-op-ing.
func (r *Registry) Lookup(category string) (ActionHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[category]
	if !ok {
		return nil, &ErrUnknownCategory{Category: category}
	}
	return h, nil
}
