// Package workflow defines the persisted shape of a workflow graph: the
// Workflow itself, its nodes and their NodeDefinitions, the directed
// connections between them, and the per-node custom configuration that
// the DAG executor resolves at run time.
package workflow

import (
	"github.com/fluxgraph/fluxgraph/engine/core"
)

// NodeType distinguishes a trigger node (starts an invocation, runs no
// action) from an action node (dispatched to the action handler registry).
type NodeType string

const (
	NodeTypeTrigger NodeType = "trigger"
	NodeTypeAction NodeType = "action"
)

// IsTrigger reports whether t is trigger-like, matching the executor's
// case-insensitive fast-path check against {trigger, scheduler, webhook}.
func (t NodeType) IsTrigger() bool {
	switch NodeType(normalizeCategory(string(t))) {
	case NodeTypeTrigger, "scheduler", "webhook":
		return true
	default:
		return false
	}
}

func normalizeCategory(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// NodeDefinition describes a node's shape independent of any particular
// workflow: its name, whether it is a trigger or an action, the category
// string used to dispatch to a handler registry, and descriptive metadata
// for the fields it accepts/produces. config_metadata is advisory; the
// executor never validates against it, it exists for tooling/UI use.
type NodeDefinition struct {
	Name string `json:"name" db:"name"`
	Type NodeType `json:"type" db:"type"`
	Category string `json:"category" db:"category"`
	ConfigMetadata map[string]any `json:"config_metadata" db:"config_metadata"`
}

// WorkflowNode is one vertex of a workflow's DAG: a NodeDefinition plus
// the per-workflow custom_config (literal values or "{{ templates }}").
type WorkflowNode struct {
	ID core.ID `json:"id" db:"id"`
	WorkflowID core.ID `json:"workflow_id" db:"workflow_id"`
	Definition NodeDefinition `json:"definition" db:"-"`
	CustomConfig map[string]any `json:"custom_config" db:"custom_config"`
}

// Category returns the dispatch key for this node, falling back to the
// node type string when the definition carries no explicit category.
func (n *WorkflowNode) Category() string {
	if n.Definition.Category != "" {
		return n.Definition.Category
	}
	return string(n.Definition.Type)
}

// WorkflowConnection is a directed, optionally conditional edge between
// two nodes of the same workflow. No self-loops; multiple incoming edges
// (joins) and multiple outgoing edges (fan-out) are both permitted.
type WorkflowConnection struct {
	WorkflowID core.ID `json:"workflow_id" db:"workflow_id"`
	FromNode core.ID `json:"from_node" db:"from_node"`
	ToNode core.ID `json:"to_node" db:"to_node"`
	Condition *string `json:"condition,omitempty" db:"condition"`
}

// Workflow is the top-level unit of ownership and activation.
type Workflow struct {
	ID core.ID `json:"id" db:"id"`
	Owner string `json:"owner" db:"owner"`
	Active bool `json:"active" db:"active"`
}

// TriggerNodeSnapshot is the wire payload shape published in control-plane
// events: only a workflow's trigger-typed nodes, with enough detail for
// the scheduler and trigger-handler registry to act.
type TriggerNodeSnapshot struct {
	NodeID core.ID `json:"node_id"`
	NodeType NodeType `json:"node_type"`
	NodeCategory string `json:"node_category"`
	CustomConfig map[string]any `json:"custom_config"`
}
