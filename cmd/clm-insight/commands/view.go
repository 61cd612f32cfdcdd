package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"clm-insight/internal/snapshot"

	"github.com/spf13/cobra"
)

var viewCmd = &cobra.Command{
	Use:   "view [timestamp]",
	Short: "Print a day snapshot; the latest day when no timestamp is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := snapshot.Open(cfg.SnapshotDir)
		if err != nil {
			return err
		}

		timestamp := ""
		if len(args) == 1 {
			timestamp = args[0]
		} else {
			latest, err := store.Latest()
			if err != nil {
				return err
			}
			if latest == nil {
				return fmt.Errorf("no snapshots in %s", cfg.SnapshotDir)
			}
			timestamp = latest.Timestamp
		}

		snap, err := store.Read(timestamp)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Summary)
	},
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
