// Package repository is the narrow persisted-schema seam: the core never
// issues SQL directly. Everything the DAG executor and control-plane
// layers need from the workflows/nodes/connections tables goes through
// this interface.
package repository

import (
	"context"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/workflow"
)

// Repository is the only way the core touches persisted workflow
// definitions: get by id, list by workflow, list by workflow+type.
type Repository interface {
	GetWorkflow(ctx context.Context, id core.ID) (*workflow.Workflow, error)
	ListNodes(ctx context.Context, workflowID core.ID) ([]workflow.WorkflowNode, error)
	ListNodesByType(ctx context.Context, workflowID core.ID, nodeType workflow.NodeType) ([]workflow.WorkflowNode, error)
	ListConnections(ctx context.Context, workflowID core.ID) ([]workflow.WorkflowConnection, error)
}
