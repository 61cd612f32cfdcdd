package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	journalFileName = "creation_results.json"
	journalTimeFmt  = "2006-01-02 15:04:05"

	// Creation result statuses.
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// CreationResult is one line of the error-ticket creation journal.
type CreationResult struct {
	SourceKey   string `json:"source_key"`
	CLMErrorKey string `json:"clm_error_key"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
}

// CreatedAt parses the journal timestamp in local time.
func (r CreationResult) CreatedAt() (time.Time, error) {
	return time.ParseInLocation(journalTimeFmt, r.Timestamp, time.Local)
}

// Journal is the durable list of creation attempts. The lifecycle driver
// reads it to find tickets that still need transitions.
type Journal struct {
	path string
	mu   sync.Mutex
}

// OpenJournal binds a journal to dir/creation_results.json, creating the
// directory if needed.
func OpenJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &Journal{path: filepath.Join(dir, journalFileName)}, nil
}

// All returns every recorded creation result; a missing file is an empty
// journal, not an error.
func (j *Journal) All() []CreationResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.readLocked()
}

func (j *Journal) readLocked() []CreationResult {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error().Err(err).Str("path", j.path).Msg("Failed to read creation results")
		}
		return nil
	}
	var results []CreationResult
	if err := json.Unmarshal(data, &results); err != nil {
		log.Error().Err(err).Str("path", j.path).Msg("Creation results file is malformed")
		return nil
	}
	return results
}

// Append records one creation attempt. An empty clmErrorKey marks a
// failed attempt.
func (j *Journal) Append(sourceKey, clmErrorKey string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	status := StatusSuccess
	if clmErrorKey == "" {
		status = StatusFailed
	}
	results := append(j.readLocked(), CreationResult{
		SourceKey:   sourceKey,
		CLMErrorKey: clmErrorKey,
		Status:      status,
		Timestamp:   time.Now().Format(journalTimeFmt),
	})

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode creation results: %w", err)
	}
	tmpPath := j.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write creation results: %w", err)
	}
	if err := os.Rename(tmpPath, j.path); err != nil {
		return fmt.Errorf("failed to replace creation results: %w", err)
	}
	log.Info().Str("source", sourceKey).Str("clm_error", clmErrorKey).Str("status", status).
		Msg("Creation result recorded")
	return nil
}
