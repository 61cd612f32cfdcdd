package commands

import (
	"context"

	"clm-insight/internal/analysis"
	"clm-insight/internal/snapshot"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	analyzeMode     string
	analyzeFilterID string
	analyzeJQL      string
	analyzeFrom     string
	analyzeTo       string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analysis pass and write the day snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := snapshot.Open(cfg.SnapshotDir)
		if err != nil {
			return err
		}

		state := analysis.NewState()
		state.Begin()
		pipe := analysis.NewPipeline(jiraClient, store, cfg, state)
		err = pipe.Run(context.Background(), analysis.Params{
			Mode:     analyzeMode,
			FilterID: analyzeFilterID,
			JQL:      analyzeJQL,
			DateFrom: analyzeFrom,
			DateTo:   analyzeTo,
		})
		progress := state.Snapshot()
		state.End("")
		if err != nil {
			return err
		}
		log.Info().Str("status", progress.StatusMessage).Int("issues", progress.TotalIssues).
			Msg("Analysis finished")
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeMode, "mode", analysis.ModeCLM, "analysis mode: jira or clm")
	analyzeCmd.Flags().StringVar(&analyzeFilterID, "filter", "", "saved filter id (defaults to CLM_FILTER_ID in clm mode)")
	analyzeCmd.Flags().StringVar(&analyzeJQL, "jql", "", "JQL query, used when no filter id is given")
	analyzeCmd.Flags().StringVar(&analyzeFrom, "from", "", "worklog window start, YYYY-MM-DD")
	analyzeCmd.Flags().StringVar(&analyzeTo, "to", "", "worklog window end, YYYY-MM-DD")
	rootCmd.AddCommand(analyzeCmd)
}
