package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"clm-insight/internal/jira"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Jira jira.Config

	DataPath      string
	SnapshotDir   string
	ResultsDir    string
	LogDir        string
	EstimationDir string

	// Burndown projection budget, in person-days.
	ProjectBudget float64

	// Daily snapshotter schedule (local time).
	UpdateHour   int
	UpdateMinute int

	// Dashboard auto-refresh cadence, seconds.
	RefreshInterval int

	// Lifecycle driver knobs.
	TransitionDelay time.Duration
	PollInterval    time.Duration

	// Default seed filter for CLM analysis runs.
	CLMFilterID string
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory (highest priority for daemons)
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve data paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := filepath.Join(dataPath, "logs")
	snapshotDir := filepath.Join(dataPath, "nbss_data")
	resultsDir := filepath.Join(dataPath, "data", "clm_results")
	estimationDir := filepath.Join(dataPath, "estimation_data")

	for _, dir := range []string{logDir, snapshotDir, resultsDir, estimationDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn().Err(err).Str("path", dir).Msg("Failed to create data directory")
		}
	}

	budget, _ := strconv.ParseFloat(getEnv("PROJECT_BUDGET", "23000"), 64)
	delaySecs, _ := strconv.Atoi(getEnv("CLM_TRANSITION_DELAY_SECONDS", "300"))
	pollSecs, _ := strconv.Atoi(getEnv("CLM_POLL_INTERVAL_SECONDS", "300"))
	refresh, _ := strconv.Atoi(getEnv("DASHBOARD_REFRESH_INTERVAL", "3600"))
	hour, _ := strconv.Atoi(getEnv("DASHBOARD_UPDATE_HOUR", "9"))
	minute, _ := strconv.Atoi(getEnv("DASHBOARD_UPDATE_MINUTE", "0"))

	cfg := &AppConfig{
		Jira: jira.Config{
			BaseURL: getEnv("JIRA_URL", "https://jira.nexign.com"),
			Token:   getEnv("JIRA_TOKEN", ""),
		},
		DataPath:        dataPath,
		SnapshotDir:     snapshotDir,
		ResultsDir:      resultsDir,
		LogDir:          logDir,
		EstimationDir:   estimationDir,
		ProjectBudget:   budget,
		UpdateHour:      hour,
		UpdateMinute:    minute,
		RefreshInterval: refresh,
		TransitionDelay: time.Duration(delaySecs) * time.Second,
		PollInterval:    time.Duration(pollSecs) * time.Second,
		CLMFilterID:     getEnv("CLM_FILTER_ID", "114473"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
