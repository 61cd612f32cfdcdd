package commands

import (
	"encoding/json"
	"os"
	"path/filepath"

	"clm-insight/internal/report"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Write the subsystem registry file used for component matching",
	Long: `Writes the built-in subsystem registry to subsystem_mapping.json under the
data path. Edit the file to teach create-errors about additional subsystems;
it is read back on every run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(cfg.DataPath, subsystemMappingFile)
		if _, err := os.Stat(path); err == nil {
			log.Warn().Str("path", path).Msg("Subsystem mapping already exists, leaving it untouched")
			return nil
		}

		data, err := json.MarshalIndent(report.DefaultSubsystems, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return err
		}
		log.Info().Str("path", path).Int("subsystems", len(report.DefaultSubsystems)).
			Msg("Subsystem mapping written")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mappingCmd)
}
