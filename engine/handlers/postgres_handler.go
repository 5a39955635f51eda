package handlers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// rowInserter is satisfied by *pgxpool.Pool and by pgxmock's doubles.
type rowInserter interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresInsertHandler is the "postgres-insert" action category: it
// inserts one row into a configured table and returns the generated id,
// giving the action registry a concrete persistence side effect to
// exercise alongside the HTTP handler.
type PostgresInsertHandler struct {
	DB rowInserter
}

// NewPostgresInsertHandler returns an ActionHandler backed by db.
func NewPostgresInsertHandler(db rowInserter) *PostgresInsertHandler {
	return &PostgresInsertHandler{DB: db}
}

func (h *PostgresInsertHandler) Run(ctx context.Context, config map[string]any, _ map[string]any) (any, error) {
	table, _ := config["table"].(string)
	if table == "" {
		return nil, fmt.Errorf("postgres-insert handler: config.table is required")
	}
	values, _ := config["values"].(map[string]any)
	if len(values) == 0 {
		return nil, fmt.Errorf("postgres-insert handler: config.values must be non-empty")
	}
	columns := make([]string, 0, len(values))
	placeholders := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	i := 1
	for col, val := range values {
		columns = append(columns, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
		args = append(args, val)
		i++
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		table, joinComma(columns), joinComma(placeholders))
	var id string
	if err := h.DB.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return nil, fmt.Errorf("postgres-insert handler: insert failed: %w", err)
	}
	return map[string]any{"status": "SUCCESS", "id": id}, nil
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
