package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"clm-insight/internal/jira"
	"clm-insight/internal/report"
)

func testSnapshot(timestamp, date string) *Snapshot {
	return &Snapshot{
		Summary: Summary{
			Date:                date,
			Timestamp:           timestamp,
			TotalIssues:         3,
			TotalTimeSpentHours: 42.5,
			OpenTasksData:       map[string]int{"NBSSPORTAL": 2},
		},
		Raw: RawIssues{
			FilteredIssues:          []jira.IssueDTO{{Key: "A-1"}},
			AllImplementationIssues: []jira.IssueDTO{{Key: "A-1"}, {Key: "B-2"}},
		},
		Keys: KeyIndex{
			FilteredIssueKeys:   []string{"A-1"},
			ProjectIssueMapping: map[string][]string{"A": {"A-1"}},
		},
		Metrics: map[string]interface{}{
			"chart_data": map[string]int{"A": 1},
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	root, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := root.Write(testSnapshot("20250115", "2025-01-15")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	timeline, err := root.Timeline()
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(timeline) != 1 {
		t.Fatalf("expected 1 day, got %d", len(timeline))
	}
	got := timeline[0]
	if got.Date != "2025-01-15" || got.TotalIssues != 3 || got.TotalTimeSpentHours != 42.5 {
		t.Errorf("summary did not round-trip: %+v", got)
	}

	snap, err := root.Read("20250115")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(snap.Raw.AllImplementationIssues) != 2 {
		t.Errorf("raw issues did not round-trip: %+v", snap.Raw)
	}
	if len(snap.Keys.ProjectIssueMapping["A"]) != 1 {
		t.Errorf("key index did not round-trip: %+v", snap.Keys)
	}

	if _, err := os.Stat(filepath.Join(root.Path(), "20250115", "metrics", "chart_data.json")); err != nil {
		t.Errorf("metrics file missing: %v", err)
	}
}

func TestTimelineSkipsDaysWithoutSummary(t *testing.T) {
	dir := t.TempDir()
	root, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Directory without summary.json must be invisible.
	if err := os.MkdirAll(filepath.Join(dir, "20250110"), 0755); err != nil {
		t.Fatal(err)
	}
	// Non-day directories are ignored too.
	if err := os.MkdirAll(filepath.Join(dir, "not-a-day"), 0755); err != nil {
		t.Fatal(err)
	}

	if err := root.Write(testSnapshot("20250112", "2025-01-12")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	timeline, err := root.Timeline()
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(timeline) != 1 || timeline[0].Timestamp != "20250112" {
		t.Errorf("unexpected timeline: %+v", timeline)
	}
}

func TestTimelineDeduplicatesAndSorts(t *testing.T) {
	root, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := root.Write(testSnapshot("20250113", "2025-01-13")); err != nil {
		t.Fatal(err)
	}
	if err := root.Write(testSnapshot("20250111", "2025-01-11")); err != nil {
		t.Fatal(err)
	}
	// Second directory claiming an already-seen date.
	dup := testSnapshot("20250199", "2025-01-11")
	if err := root.Write(dup); err != nil {
		t.Fatal(err)
	}

	timeline, err := root.Timeline()
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(timeline) != 2 {
		t.Fatalf("expected 2 days after deduplication, got %d", len(timeline))
	}
	if timeline[0].Date != "2025-01-11" || timeline[1].Date != "2025-01-13" {
		t.Errorf("timeline not sorted ascending: %+v", timeline)
	}

	latest, err := root.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest == nil || latest.Date != "2025-01-13" {
		t.Errorf("latest = %+v", latest)
	}
}

func TestWriteRejectsBadTimestamp(t *testing.T) {
	root, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := root.Write(testSnapshot("2025-01-15", "2025-01-15")); err == nil {
		t.Error("expected an error for a non-8-digit timestamp")
	}
}

func TestEnsureSeedData(t *testing.T) {
	root, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := root.EnsureSeedData(23000, 3600); err != nil {
		t.Fatalf("EnsureSeedData: %v", err)
	}
	timeline, err := root.Timeline()
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(timeline) != 8 {
		t.Fatalf("expected 8 seeded days, got %d", len(timeline))
	}
	if timeline[0].TotalTimeSpentDays >= timeline[7].TotalTimeSpentDays {
		t.Errorf("seeded series must increase toward today: %+v", timeline)
	}

	// A second call must not disturb existing data.
	if err := root.EnsureSeedData(23000, 3600); err != nil {
		t.Fatalf("EnsureSeedData rerun: %v", err)
	}
	again, _ := root.Timeline()
	if len(again) != 8 {
		t.Errorf("seeding reran over existing data: %d days", len(again))
	}
}

func TestEstimationReportRoundTrip(t *testing.T) {
	dir := t.TempDir()

	first := &report.EstimationReport{
		Timestamp:  "20250110",
		Date:       "2025-01-10",
		Parameters: report.EstimationParams{SprintFilter: true},
		Results:    []report.EstimationEntry{{IssueKey: "A-1"}},
	}
	second := &report.EstimationReport{
		Timestamp:  "20250112",
		Date:       "2025-01-12",
		Parameters: report.EstimationParams{SprintFilter: true},
		Results:    []report.EstimationEntry{{IssueKey: "A-2"}},
	}
	other := &report.EstimationReport{
		Timestamp: "20250113",
		Date:      "2025-01-13",
	}
	for _, rep := range []*report.EstimationReport{first, second, other} {
		if err := SaveEstimationReport(dir, rep); err != nil {
			t.Fatalf("SaveEstimationReport: %v", err)
		}
	}

	latest, err := LatestEstimationReport(dir, report.EstimationParams{SprintFilter: true})
	if err != nil {
		t.Fatalf("LatestEstimationReport: %v", err)
	}
	if latest == nil || latest.Date != "2025-01-12" {
		t.Errorf("latest = %+v", latest)
	}
	if len(latest.Results) != 1 || latest.Results[0].IssueKey != "A-2" {
		t.Errorf("report did not round-trip: %+v", latest)
	}

	missing, err := LatestEstimationReport(filepath.Join(dir, "nope"), report.EstimationParams{})
	if err != nil || missing != nil {
		t.Errorf("missing directory should yield nil, nil; got %+v, %v", missing, err)
	}
}
