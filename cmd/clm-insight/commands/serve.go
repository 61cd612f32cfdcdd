package commands

import (
	"context"
	"os/signal"
	"syscall"

	"clm-insight/internal/analysis"
	"clm-insight/internal/jobs"
	"clm-insight/internal/lifecycle"
	"clm-insight/internal/snapshot"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the lifecycle driver and the daily snapshot scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := snapshot.Open(cfg.SnapshotDir)
		if err != nil {
			return err
		}
		journal, err := lifecycle.OpenJournal(cfg.ResultsDir)
		if err != nil {
			return err
		}
		tracking, err := lifecycle.OpenTracking(cfg.ResultsDir)
		if err != nil {
			return err
		}

		pipe := analysis.NewPipeline(jiraClient, store, cfg, analysis.NewState())
		driver := lifecycle.NewDriver(jiraClient, journal, tracking, cfg.TransitionDelay, cfg.PollInterval)
		cron := jobs.NewCron(pipe, cfg.UpdateHour, cfg.UpdateMinute)

		group, ctx := errgroup.WithContext(ctx)
		group.Go(func() error {
			return driver.Run(ctx)
		})
		group.Go(func() error {
			cron.Start()
			<-ctx.Done()
			cron.Stop()
			return ctx.Err()
		})

		log.Info().Int("hour", cfg.UpdateHour).Int("minute", cfg.UpdateMinute).
			Msg("Serving until interrupted")
		if err := group.Wait(); err != nil && err != context.Canceled {
			return err
		}
		log.Info().Msg("Shutdown complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
