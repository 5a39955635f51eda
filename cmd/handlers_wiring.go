package cmd

import (
	"github.com/go-resty/resty/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fluxgraph/fluxgraph/engine/handlers"
	"github.com/fluxgraph/fluxgraph/pkg/config"
)

// registerBuiltinActionHandlers installs the action categories fluxgraph
// ships out of the box. Deployments that need more register additional
// categories on the same Registry before passing it to executor.NewEngine.
func registerBuiltinActionHandlers(registry *handlers.Registry, _ *config.Config, pool *pgxpool.Pool) {
	client := resty.New()
	registry.Register("http", handlers.NewHTTPHandler(client))
	if pool != nil {
		registry.Register("postgres-insert", handlers.NewPostgresInsertHandler(pool))
	}
}
