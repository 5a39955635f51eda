package cmd

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fluxgraph/fluxgraph/engine/executor"
	"github.com/fluxgraph/fluxgraph/engine/handlers"
	"github.com/fluxgraph/fluxgraph/engine/worker"
	"github.com/fluxgraph/fluxgraph/pkg/config"
	"github.com/fluxgraph/fluxgraph/pkg/logger"
)

// workerCmd runs the trigger dispatcher plus its pending-entries
// claimer against the DAG executor.
func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "run the trigger dispatcher and DAG executor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.Get()
			log := logger.FromContext(ctx)

			rdb, err := openRedis(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = rdb.Close() }()

			repo, pool, cleanup, err := openRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			actions := handlers.NewRegistry()
			registerBuiltinActionHandlers(actions, cfg, pool)

			eng := executor.NewEngine(repo, actions, cfg.ExecutorPoolSize)
			d := worker.NewDispatcher(rdb, eng,
				worker.WithStreamName(cfg.TriggerStreamName),
				worker.WithGroup(cfg.TriggerConsumerGroup),
				worker.WithBlockTimeout(cfg.TriggerReadBlock),
			)
			claimer := worker.NewClaimer(d, cfg.TriggerClaimIdle, cfg.TriggerClaimInterval)

			log.Info("worker starting", "stream", cfg.TriggerStreamName, "group", cfg.TriggerConsumerGroup)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return d.Run(gctx) })
			g.Go(func() error { claimer.Run(gctx); return nil })
			return g.Wait()
		},
	}
}
