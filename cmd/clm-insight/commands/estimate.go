package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"clm-insight/internal/analysis"
	"clm-insight/internal/report"
	"clm-insight/internal/snapshot"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	estimateFilterID     string
	estimateJQL          string
	estimateSprintFilter bool
	estimateAllTasks     bool
	estimateLatest       bool
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Build the estimate-drift report against the baseline cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		params := report.EstimationParams{
			SprintFilter: estimateSprintFilter,
			AllTasks:     estimateAllTasks,
		}

		if estimateLatest {
			rep, err := snapshot.LatestEstimationReport(cfg.EstimationDir, params)
			if err != nil {
				return err
			}
			if rep == nil {
				return fmt.Errorf("no estimation reports in %s", cfg.EstimationDir)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}

		store, err := snapshot.Open(cfg.SnapshotDir)
		if err != nil {
			return err
		}

		pipe := analysis.NewPipeline(jiraClient, store, cfg, nil)
		rep, err := pipe.RunEstimation(context.Background(), estimateFilterID, estimateJQL, params)
		if err != nil {
			return err
		}
		log.Info().Str("date", rep.Date).Int("issues", len(rep.Results)).
			Msg("Estimation report written")
		return nil
	},
}

func init() {
	estimateCmd.Flags().StringVar(&estimateFilterID, "filter", "", "saved filter id")
	estimateCmd.Flags().StringVar(&estimateJQL, "jql", "", "JQL query, used when no filter id is given")
	estimateCmd.Flags().BoolVar(&estimateSprintFilter, "sprint-filter", false, "restrict to target sprints")
	estimateCmd.Flags().BoolVar(&estimateAllTasks, "all-tasks", false, "include all issue types, not only New Feature")
	estimateCmd.Flags().BoolVar(&estimateLatest, "latest", false, "print the newest stored report instead of running")
	rootCmd.AddCommand(estimateCmd)
}
