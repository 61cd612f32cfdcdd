package analysis

import "sync"

// ProgressSink receives coarse progress updates from a running analysis.
type ProgressSink interface {
	SetProgress(percent int)
	SetMessage(message string)
	SetTotal(total int)
}

// Progress is a point-in-time copy of the analysis state.
type Progress struct {
	IsRunning     bool   `json:"is_running"`
	Percent       int    `json:"progress"`
	StatusMessage string `json:"status_message"`
	TotalIssues   int    `json:"total_issues"`
	LastRun       string `json:"last_run,omitempty"`
}

// State is the shared progress record. The pipeline writes through the
// ProgressSink methods; concurrent readers take copies via Snapshot.
type State struct {
	mu      sync.Mutex
	current Progress
}

func NewState() *State {
	return &State{}
}

// Begin marks a run as started and resets the counters. It returns false
// when a run is already in flight.
func (s *State) Begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.IsRunning {
		return false
	}
	s.current = Progress{IsRunning: true, LastRun: s.current.LastRun}
	return true
}

// End clears the running flag. timestamp records the run when non-empty.
func (s *State) End(timestamp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.IsRunning = false
	if timestamp != "" {
		s.current.LastRun = timestamp
	}
}

func (s *State) SetProgress(percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Percent = percent
}

func (s *State) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.StatusMessage = message
}

func (s *State) SetTotal(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.TotalIssues = total
}

// Snapshot returns a copy safe to serve while the run continues.
func (s *State) Snapshot() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// nopSink discards updates; used when no observer is interested.
type nopSink struct{}

func (nopSink) SetProgress(int)   {}
func (nopSink) SetMessage(string) {}
func (nopSink) SetTotal(int)      {}
