package cmd

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fluxgraph/fluxgraph/engine/controlplane"
	"github.com/fluxgraph/fluxgraph/engine/infra/monitoring"
	"github.com/fluxgraph/fluxgraph/engine/triggerhandlers"
	"github.com/fluxgraph/fluxgraph/engine/webhook"
	"github.com/fluxgraph/fluxgraph/engine/workflow/schedule"
	"github.com/fluxgraph/fluxgraph/pkg/config"
	"github.com/fluxgraph/fluxgraph/pkg/logger"
)

var serveAddr string

// serveCmd runs the control-plane reconciler and the inbound webhook HTTP
// surface together — the pair of components that react to the outside
// world rather than to the schedule/trigger streams.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the control-plane reconciler and webhook HTTP surface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.Get()
			log := logger.FromContext(ctx)

			rdb, err := openRedis(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = rdb.Close() }()

			sched := schedule.NewScheduler(rdb,
				schedule.WithZSetKey(cfg.ScheduleZSetKey),
				schedule.WithStreamName(cfg.TriggerStreamName),
			)
			triggerRegistry := triggerhandlers.NewRegistry()
			triggerRegistry.Register("scheduler", triggerhandlers.NewSchedulerHandler(sched))

			reconciler := controlplane.NewReconciler(rdb, cfg.ControlPlaneTopic, triggerRegistry)

			monitoring.MustRegister(prometheus.DefaultRegisterer)

			orchestrator := webhook.NewOrchestrator(rdb)
			router := gin.Default()
			orchestrator.RegisterRoutes(router, "/webhooks")
			router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
			router.GET("/metrics", gin.WrapH(promhttp.Handler()))

			srv := &http.Server{Addr: serveAddr, Handler: router}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return reconciler.Run(gctx) })
			g.Go(func() error {
				log.Info("webhook HTTP surface starting", "addr", serveAddr)
				errCh := make(chan error, 1)
				go func() { errCh <- srv.ListenAndServe() }()
				select {
				case <-gctx.Done():
					return srv.Close()
				case err := <-errCh:
					if err != nil && err != http.ErrServerClosed {
						return fmt.Errorf("webhook server failed: %w", err)
					}
					return nil
				}
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address the webhook HTTP surface listens on")
	return cmd
}
