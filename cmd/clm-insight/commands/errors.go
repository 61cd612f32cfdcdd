package commands

import (
	"context"
	"fmt"
	"strings"

	"clm-insight/internal/lifecycle"

	"github.com/spf13/cobra"
)

var createErrorsCmd = &cobra.Command{
	Use:   "create-errors <keys>",
	Short: "Create CLM error tickets for the given source issue keys",
	Long: `Creates one CLM Error per source ticket, copying summary, description and
component-derived subsystem fields, links the pair and records the result in
the creation journal picked up by the lifecycle driver.

Keys are comma separated, e.g. "NBSSPORTAL-101,UDB-7".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		journal, err := lifecycle.OpenJournal(cfg.ResultsDir)
		if err != nil {
			return err
		}

		creator := lifecycle.NewCreator(jiraClient, journal, loadSubsystems())
		created := creator.CreateErrors(context.Background(), args[0])

		for source, clmKey := range created {
			fmt.Printf("%s -> %s\n", source, clmKey)
		}
		requested := 0
		for _, key := range strings.Split(args[0], ",") {
			if strings.TrimSpace(key) != "" {
				requested++
			}
		}
		if len(created) < requested {
			return fmt.Errorf("%d of %d tickets failed, see log and creation journal", requested-len(created), requested)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createErrorsCmd)
}
