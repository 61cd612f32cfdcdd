package commands

import (
	"encoding/json"
	"os"
	"path/filepath"

	"clm-insight/internal/config"
	"clm-insight/internal/jira"
	"clm-insight/internal/logging"
	"clm-insight/internal/report"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig

	jiraClient jira.Client
)

var rootCmd = &cobra.Command{
	Use:   "clm-insight",
	Short: "CLM-Insight is a Jira reporting and workflow automation tool",
	Long: `CLM-Insight traverses the CLM issue graph in Jira, aggregates effort and status
metrics into daily snapshots, and drives freshly created CLM error tickets
through their workflow statuses.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)

		// Load configuration
		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		// Initialize Jira Client
		jiraClient = jira.NewClient(cfg.Jira)

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Msg("CLM-Insight starting")
	},
}

func Execute() error {
	return rootCmd.Execute()
}

const subsystemMappingFile = "subsystem_mapping.json"

// loadSubsystems reads the subsystem registry written by the mapping
// command; the built-in registry applies when no file exists.
func loadSubsystems() []string {
	path := filepath.Join(cfg.DataPath, subsystemMappingFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to read subsystem mapping")
		}
		return report.DefaultSubsystems
	}
	var subsystems []string
	if err := json.Unmarshal(data, &subsystems); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Subsystem mapping is malformed, using defaults")
		return report.DefaultSubsystems
	}
	return subsystems
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}
