package repository

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/workflow"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
)

// querier is satisfied by *pgxpool.Pool, a pgx.Conn, a pgx.Tx, and by
// pgxmock's pool double, so tests can swap in pgxmock without a live
// database while production code passes a real pool.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository is the production Repository, backed by pgx/v5 for
// the connection pool, squirrel for query building, and scany for row
// scanning.
type PostgresRepository struct {
	pool querier
}

// NewPostgresRepository wraps an already-connected pool (or, in tests, a
// pgxmock double satisfying the same query surface).
func NewPostgresRepository(pool querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type workflowRow struct {
	ID     string `db:"id"`
	Owner  string `db:"owner"`
	Active bool   `db:"active"`
}

func (r *PostgresRepository) GetWorkflow(ctx context.Context, id core.ID) (*workflow.Workflow, error) {
	query, args, err := psql.Select("id", "owner", "active").
		From("workflows").
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build workflow query: %w", err)
	}
	var row workflowRow
	if err := pgxscan.Get(ctx, r.pool, &row, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
	}
	return &workflow.Workflow{ID: core.ID(row.ID), Owner: row.Owner, Active: row.Active}, nil
}

type nodeRow struct {
	ID             string `db:"id"`
	WorkflowID     string `db:"workflow_id"`
	Name           string `db:"name"`
	Type           string `db:"type"`
	Category       string `db:"category"`
	ConfigMetadata []byte `db:"config_metadata"`
	CustomConfig   []byte `db:"custom_config"`
}

func (row *nodeRow) toNode() (workflow.WorkflowNode, error) {
	node := workflow.WorkflowNode{
		ID:         core.ID(row.ID),
		WorkflowID: core.ID(row.WorkflowID),
		Definition: workflow.NodeDefinition{
			Name:     row.Name,
			Type:     workflow.NodeType(row.Type),
			Category: row.Category,
		},
	}
	if len(row.ConfigMetadata) > 0 {
		if err := json.Unmarshal(row.ConfigMetadata, &node.Definition.ConfigMetadata); err != nil {
			return node, fmt.Errorf("failed to unmarshal config_metadata for node %s: %w", row.ID, err)
		}
	}
	if len(row.CustomConfig) > 0 {
		if err := json.Unmarshal(row.CustomConfig, &node.CustomConfig); err != nil {
			return node, fmt.Errorf("failed to unmarshal custom_config for node %s: %w", row.ID, err)
		}
	}
	return node, nil
}

func (r *PostgresRepository) ListNodes(ctx context.Context, workflowID core.ID) ([]workflow.WorkflowNode, error) {
	return r.listNodes(ctx, psql.Select(
		"wn.id", "wn.workflow_id", "n.name", "n.type", "n.category", "n.config_metadata", "wn.custom_config").
		From("workflow_nodes wn").
		Join("nodes n ON n.id = wn.node_definition_id").
		Where(sq.Eq{"wn.workflow_id": workflowID.String()}))
}

func (r *PostgresRepository) ListNodesByType(
	ctx context.Context,
	workflowID core.ID,
	nodeType workflow.NodeType,
) ([]workflow.WorkflowNode, error) {
	return r.listNodes(ctx, psql.Select(
		"wn.id", "wn.workflow_id", "n.name", "n.type", "n.category", "n.config_metadata", "wn.custom_config").
		From("workflow_nodes wn").
		Join("nodes n ON n.id = wn.node_definition_id").
		Where(sq.Eq{"wn.workflow_id": workflowID.String(), "n.type": string(nodeType)}))
}

func (r *PostgresRepository) listNodes(ctx context.Context, builder sq.SelectBuilder) ([]workflow.WorkflowNode, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build node query: %w", err)
	}
	var rows []nodeRow
	if err := pgxscan.Select(ctx, r.pool, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	nodes := make([]workflow.WorkflowNode, 0, len(rows))
	for i := range rows {
		node, err := rows[i].toNode()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

type connectionRow struct {
	WorkflowID string  `db:"workflow_id"`
	FromNode   string  `db:"from_node"`
	ToNode     string  `db:"to_node"`
	Condition  *string `db:"condition"`
}

func (r *PostgresRepository) ListConnections(
	ctx context.Context,
	workflowID core.ID,
) ([]workflow.WorkflowConnection, error) {
	query, args, err := psql.Select("workflow_id", "from_node", "to_node", "condition").
		From("workflow_connections").
		Where(sq.Eq{"workflow_id": workflowID.String()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build connection query: %w", err)
	}
	var rows []connectionRow
	if err := pgxscan.Select(ctx, r.pool, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	conns := make([]workflow.WorkflowConnection, 0, len(rows))
	for _, row := range rows {
		conns = append(conns, workflow.WorkflowConnection{
			WorkflowID: core.ID(row.WorkflowID),
			FromNode:   core.ID(row.FromNode),
			ToNode:     core.ID(row.ToNode),
			Condition:  row.Condition,
		})
	}
	return conns, nil
}
