package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fluxgraph/fluxgraph/engine/workflow/schedule"
	"github.com/fluxgraph/fluxgraph/pkg/config"
	"github.com/fluxgraph/fluxgraph/pkg/logger"
)

// schedulerCmd runs the scheduler loop standalone: drain
// workflow_schedules_zset onto workflow_triggers on every tick.
func schedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "run the schedule drain loop",
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
				schedule.WithTickInterval(cfg.SchedulerTickInterval),
			)
			log.Info("scheduler starting", "tick_interval", cfg.SchedulerTickInterval.String())
			sched.Run(ctx)
			return nil
		},
	}
}
