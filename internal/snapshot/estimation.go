package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"clm-insight/internal/report"

	"github.com/rs/zerolog/log"
)

const estimationFilePrefix = "estimation_results"

// SaveEstimationReport persists a drift report under dir with a
// date-stamped, parameter-tagged file name.
func SaveEstimationReport(dir string, rep *report.EstimationReport) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create estimation directory: %w", err)
	}

	parts := []string{rep.Timestamp, estimationFilePrefix}
	if rep.Parameters.SprintFilter {
		parts = append(parts, "sprint_filtered")
	}
	if rep.Parameters.AllTasks {
		parts = append(parts, "all_tasks")
	}
	path := filepath.Join(dir, strings.Join(parts, "_")+".json")

	if err := writeJSON(path, rep); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("entries", len(rep.Results)).Msg("Estimation report saved")
	return nil
}

// LatestEstimationReport loads the newest report matching the given
// parameter variant.
func LatestEstimationReport(dir string, params report.EstimationParams) (*report.EstimationReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read estimation directory: %w", err)
	}

	var candidates []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "20") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if params.SprintFilter != strings.Contains(name, "sprint_filtered") {
			continue
		}
		if params.AllTasks != strings.Contains(name, "all_tasks") {
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Sort(sort.Reverse(sort.StringSlice(candidates)))
	var rep report.EstimationReport
	if err := readJSON(filepath.Join(dir, candidates[0]), &rep); err != nil {
		return nil, fmt.Errorf("failed to load estimation report: %w", err)
	}
	log.Info().Str("file", candidates[0]).Msg("Loaded latest estimation report")
	return &rep, nil
}
