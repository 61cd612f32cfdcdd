package report

import (
	"testing"
	"time"

	"clm-insight/internal/jira"
)

func estimateIssue(created string, current int64, histories ...jira.HistoryDTO) jira.IssueDTO {
	return jira.IssueDTO{
		Key: "EST-1",
		Fields: jira.FieldsDTO{
			Created:          created,
			OriginalEstimate: int64Ptr(current),
		},
		Changelog: &jira.ChangelogDTO{Histories: histories},
	}
}

func TestEstimateAtReplay(t *testing.T) {
	issue := estimateIssue("2024-12-01T10:00:00.000+0000", 28800,
		jira.HistoryDTO{
			Created: "2025-02-01T10:00:00.000+0000",
			Items: []jira.ItemDTO{
				{Field: "timeoriginalestimate", From: "14400", To: "28800"},
			},
		},
	)

	at := func(s string) time.Time {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t.Fatalf("parse %s: %v", s, err)
		}
		return ts
	}

	if got := EstimateAt(issue, at("2025-01-10T00:00:00Z")); got != 14400 {
		t.Errorf("estimate before the change = %d, want 14400", got)
	}
	if got := EstimateAt(issue, at("2025-03-01T00:00:00Z")); got != 28800 {
		t.Errorf("estimate after the change = %d, want 28800", got)
	}
}

func TestEstimateAtCreatedAfterCutoff(t *testing.T) {
	issue := estimateIssue("2025-06-01T10:00:00.000+0000", 28800)
	if got := EstimateAt(issue, DefaultCutoff); got != 0 {
		t.Errorf("issue created after cutoff must contribute 0, got %d", got)
	}
}

func TestEstimateAtNoChangelog(t *testing.T) {
	issue := jira.IssueDTO{
		Key: "EST-2",
		Fields: jira.FieldsDTO{
			Created:          "2024-01-01T10:00:00.000+0000",
			OriginalEstimate: int64Ptr(7200),
		},
	}
	if got := EstimateAt(issue, DefaultCutoff); got != 7200 {
		t.Errorf("expected current value 7200, got %d", got)
	}
}

func TestParseSprintString(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantIDs  []int
		wantName string
	}{
		{"name id pair", "NBSS Q1 Sprint [ 14638 ]", []int{14638}, "NBSS Q1 Sprint"},
		{"bare id", "[ 14639 ]", []int{14639}, "Sprint 14639"},
		{"naming scheme", "NBSS 25Q3", []int{14640}, "NBSS 25Q3"},
		{"empty", "", nil, ""},
		{"no match", "Backlog", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseSprintString(tc.in)
			if len(got) != len(tc.wantIDs) {
				t.Fatalf("expected %d sprints, got %d (%+v)", len(tc.wantIDs), len(got), got)
			}
			for i, id := range tc.wantIDs {
				if got[i].ID != id {
					t.Errorf("sprint %d id = %d, want %d", i, got[i].ID, id)
				}
			}
			if len(got) > 0 && got[0].Name != tc.wantName {
				t.Errorf("sprint name = %q, want %q", got[0].Name, tc.wantName)
			}
		})
	}
}

func TestSprintsAtReplay(t *testing.T) {
	issue := jira.IssueDTO{
		Key: "NBSSPORTAL-5",
		Fields: jira.FieldsDTO{
			Created: "2024-11-01T10:00:00.000+0000",
			Sprint:  jira.SprintList{{ID: 14640, Name: "NBSS 25Q3"}},
		},
		Changelog: &jira.ChangelogDTO{
			Histories: []jira.HistoryDTO{
				{
					Created: "2025-03-01T10:00:00.000+0000",
					Items: []jira.ItemDTO{
						{Field: "Sprint", FromString: "NBSS 25Q1 [ 14638 ]", ToString: "NBSS 25Q3 [ 14640 ]"},
					},
				},
			},
		},
	}

	got := SprintsAt(issue, DefaultCutoff)
	if len(got) != 1 || got[0].ID != 14638 {
		t.Fatalf("expected sprint 14638 at cutoff, got %+v", got)
	}

	after := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	got = SprintsAt(issue, after)
	if len(got) != 1 || got[0].ID != 14640 {
		t.Fatalf("expected current sprint 14640 after the change, got %+v", got)
	}
}

func TestSprintsAtFallsBackToCurrent(t *testing.T) {
	issue := jira.IssueDTO{
		Key: "UDB-9",
		Fields: jira.FieldsDTO{
			Sprint: jira.SprintList{{ID: 14641, Name: "NBSS 25Q4"}},
		},
	}
	got := SprintsAt(issue, DefaultCutoff)
	if len(got) != 1 || got[0].ID != 14641 {
		t.Fatalf("expected fallback to current sprints, got %+v", got)
	}
}
