package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/rs/zerolog/log"
)

const (
	summaryFile   = "summary.json"
	rawIssuesFile = "raw_issues.json"
	keysFile      = "clm_issue_keys.json"
	dataDirName   = "data"
	metricsDir    = "metrics"
)

var dayDirPattern = regexp.MustCompile(`^\d{8}$`)

// Root is a handle to the snapshot directory tree. Opening it guarantees
// the directory exists before the first write.
type Root struct {
	path string
}

// Open creates the storage root if needed and returns a handle.
func Open(path string) (*Root, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot root %q: %w", path, err)
	}
	return &Root{path: path}, nil
}

func (r *Root) Path() string { return r.path }

// Write persists a snapshot into its day directory. summary.json goes
// last: readers treat its presence as the completion marker, so a crash
// mid-write leaves an invisible day rather than a partial one.
func (r *Root) Write(snap *Snapshot) error {
	if !dayDirPattern.MatchString(snap.Summary.Timestamp) {
		return fmt.Errorf("invalid snapshot timestamp %q", snap.Summary.Timestamp)
	}
	dayDir := filepath.Join(r.path, snap.Summary.Timestamp)
	for _, dir := range []string{dayDir, filepath.Join(dayDir, dataDirName), filepath.Join(dayDir, metricsDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	if err := writeJSON(filepath.Join(dayDir, rawIssuesFile), snap.Raw); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dayDir, dataDirName, keysFile), snap.Keys); err != nil {
		return err
	}
	for name, value := range snap.Metrics {
		if err := writeJSON(filepath.Join(dayDir, metricsDir, name+".json"), value); err != nil {
			return err
		}
	}
	if err := writeJSON(filepath.Join(dayDir, summaryFile), snap.Summary); err != nil {
		return err
	}

	log.Info().Str("date", snap.Summary.Date).Str("dir", dayDir).Msg("Snapshot written")
	return nil
}

// WriteSummaryOnly persists just the summary record for a day. Used by
// the initial seeding so a fresh dashboard has a timeline.
func (r *Root) WriteSummaryOnly(summary Summary) error {
	dayDir := filepath.Join(r.path, summary.Timestamp)
	if err := os.MkdirAll(dayDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return writeJSON(filepath.Join(dayDir, summaryFile), summary)
}

// Timeline loads all day summaries: 8-digit directories only, a day needs
// summary.json to count, duplicate dates collapse to the first seen,
// output sorted by date ascending.
func (r *Root) Timeline() ([]Summary, error) {
	entries, err := os.ReadDir(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot root: %w", err)
	}

	byDate := make(map[string]bool)
	var timeline []Summary
	for _, entry := range entries {
		if !entry.IsDir() || !dayDirPattern.MatchString(entry.Name()) {
			continue
		}
		var summary Summary
		path := filepath.Join(r.path, entry.Name(), summaryFile)
		if err := readJSON(path, &summary); err != nil {
			if !os.IsNotExist(err) {
				log.Warn().Err(err).Str("dir", entry.Name()).Msg("Skipping unreadable snapshot day")
			}
			continue
		}
		if byDate[summary.Date] {
			log.Debug().Str("date", summary.Date).Str("dir", entry.Name()).Msg("Skipping duplicate snapshot date")
			continue
		}
		byDate[summary.Date] = true
		timeline = append(timeline, summary)
	}

	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Date < timeline[j].Date })
	return timeline, nil
}

// Latest returns the newest day of the timeline, or nil when empty.
func (r *Root) Latest() (*Summary, error) {
	timeline, err := r.Timeline()
	if err != nil {
		return nil, err
	}
	if len(timeline) == 0 {
		return nil, nil
	}
	return &timeline[len(timeline)-1], nil
}

// Read loads one full snapshot by its day timestamp. Optional files may
// be absent; summary.json is required.
func (r *Root) Read(timestamp string) (*Snapshot, error) {
	dayDir := filepath.Join(r.path, timestamp)
	snap := &Snapshot{}
	if err := readJSON(filepath.Join(dayDir, summaryFile), &snap.Summary); err != nil {
		return nil, fmt.Errorf("snapshot %s has no summary: %w", timestamp, err)
	}
	if err := readJSON(filepath.Join(dayDir, rawIssuesFile), &snap.Raw); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("timestamp", timestamp).Msg("Failed to read raw issues")
	}
	if err := readJSON(filepath.Join(dayDir, dataDirName, keysFile), &snap.Keys); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("timestamp", timestamp).Msg("Failed to read issue key index")
	}
	return snap, nil
}

// writeJSON writes a value atomically: temp file in the same directory,
// then rename. Output is two-space indented UTF-8 with non-ASCII text
// kept as-is.
func writeJSON(path string, value interface{}) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
