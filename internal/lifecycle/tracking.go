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

const trackingFileName = "received_tracking.json"

// Tracking is the durable map of tickets that have entered Received.
// Entries are only ever added, so each ticket is transitioned into
// Received at most once across restarts.
type Tracking struct {
	path    string
	mu      sync.Mutex
	entries map[string]string
}

// OpenTracking loads (or initializes) the tracking map under dir.
func OpenTracking(dir string) (*Tracking, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tracking directory: %w", err)
	}
	t := &Tracking{
		path:    filepath.Join(dir, trackingFileName),
		entries: make(map[string]string),
	}

	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("failed to read tracking file: %w", err)
	}
	if err := json.Unmarshal(data, &t.entries); err != nil {
		return nil, fmt.Errorf("tracking file is malformed: %w", err)
	}
	log.Info().Int("count", len(t.entries)).Msg("Loaded received-tracking map")
	return t, nil
}

// PreviouslyReceived reports whether the ticket already entered Received.
func (t *Tracking) PreviouslyReceived(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[key]
	return ok
}

// MarkReceived records the first entry into Received. Re-marking an
// already tracked ticket keeps the original timestamp.
func (t *Tracking) MarkReceived(key string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[key]; ok {
		return nil
	}
	t.entries[key] = at.Format(journalTimeFmt)

	data, err := json.MarshalIndent(t.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tracking map: %w", err)
	}
	tmpPath := t.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write tracking map: %w", err)
	}
	if err := os.Rename(tmpPath, t.path); err != nil {
		return fmt.Errorf("failed to replace tracking map: %w", err)
	}
	log.Info().Str("key", key).Msg("Ticket marked as received")
	return nil
}

// Len returns the number of tracked tickets.
func (t *Tracking) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
