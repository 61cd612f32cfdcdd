package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"clm-insight/internal/config"
	"clm-insight/internal/jira"
	"clm-insight/internal/snapshot"
)

func int64Ptr(v int64) *int64 { return &v }

// fakeClient serves canned search results keyed by a JQL substring.
type fakeClient struct {
	filterJQL string
	responses map[string][]jira.IssueDTO
	searches  []string
}

func (f *fakeClient) CheckConnection(ctx context.Context) error { return nil }

func (f *fakeClient) SearchIssues(ctx context.Context, jql string, opts jira.SearchOptions) ([]jira.IssueDTO, error) {
	f.searches = append(f.searches, jql)
	for marker, issues := range f.responses {
		if strings.Contains(jql, marker) {
			return issues, nil
		}
	}
	return nil, nil
}

func (f *fakeClient) GetIssue(ctx context.Context, key string, opts jira.SearchOptions) (*jira.IssueDTO, error) {
	return nil, errors.New("not found")
}

func (f *fakeClient) GetFilterJQL(ctx context.Context, filterID string) (string, error) {
	if f.filterJQL == "" {
		return "", errors.New("no such filter")
	}
	return f.filterJQL, nil
}

func (f *fakeClient) GetTransitions(ctx context.Context, key string) ([]jira.TransitionDTO, error) {
	return nil, nil
}

func (f *fakeClient) PostTransition(ctx context.Context, key string, transitionID string, fields map[string]interface{}) error {
	return nil
}

func (f *fakeClient) CreateIssue(ctx context.Context, fields map[string]interface{}) (string, error) {
	return "", errors.New("not supported")
}

func (f *fakeClient) CreateLink(ctx context.Context, linkType, inwardKey, outwardKey string) error {
	return nil
}

func (f *fakeClient) GetCreateMeta(ctx context.Context, projectKey, issueTypeName string) (*jira.CreateMeta, error) {
	return nil, errors.New("not supported")
}

func (f *fakeClient) GetFieldOptions(ctx context.Context, projectKey, issueTypeName, fieldID string) ([]jira.FieldOption, error) {
	return nil, nil
}

func (f *fakeClient) ListFields(ctx context.Context) ([]jira.FieldDTO, error) {
	return nil, nil
}

func issue(key, project, issueType, status string, spentSeconds int64) jira.IssueDTO {
	out := jira.IssueDTO{Key: key}
	out.Fields.Project.Key = project
	out.Fields.IssueType.Name = issueType
	out.Fields.Status.Name = status
	if spentSeconds > 0 {
		out.Fields.TimeSpent = int64Ptr(spentSeconds)
	}
	return out
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{
		ProjectBudget:   23000,
		RefreshInterval: 3600,
		CLMFilterID:     "114473",
		EstimationDir:   t.TempDir(),
	}
}

func TestStateProgress(t *testing.T) {
	state := NewState()
	if !state.Begin() {
		t.Fatal("first Begin must succeed")
	}
	if state.Begin() {
		t.Error("Begin while running must fail")
	}

	state.SetProgress(40)
	state.SetMessage("working")
	state.SetTotal(7)

	got := state.Snapshot()
	if !got.IsRunning || got.Percent != 40 || got.StatusMessage != "working" || got.TotalIssues != 7 {
		t.Errorf("snapshot = %+v", got)
	}

	state.End("20250115")
	got = state.Snapshot()
	if got.IsRunning || got.LastRun != "20250115" {
		t.Errorf("after End: %+v", got)
	}
	if !state.Begin() {
		t.Error("Begin after End must succeed")
	}
}

func TestRunJiraWritesSnapshot(t *testing.T) {
	client := &fakeClient{
		filterJQL: "project = NBSSPORTAL",
		responses: map[string][]jira.IssueDTO{
			"NBSSPORTAL": {
				issue("NBSSPORTAL-1", "NBSSPORTAL", "Task", "Open", 3600),
				issue("NBSSPORTAL-2", "NBSSPORTAL", "Task", "Closed", 0),
			},
		},
	}
	store, err := snapshot.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	pipe := NewPipeline(client, store, testConfig(t), nil)

	if err := pipe.Run(context.Background(), Params{Mode: ModeJira, FilterID: "1"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	latest, err := store.Latest()
	if err != nil || latest == nil {
		t.Fatalf("Latest: %+v, %v", latest, err)
	}
	if latest.TotalIssues != 2 || latest.TotalTimeSpentHours != 1 {
		t.Errorf("summary = %+v", latest)
	}
	if latest.ProjectBudgetDays != 23000 {
		t.Errorf("budget = %v", latest.ProjectBudgetDays)
	}

	snap, err := store.Read(latest.Timestamp)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Raw.FilteredIssues) != 2 || len(snap.Keys.FilteredIssueKeys) != 2 {
		t.Errorf("raw/keys = %d/%d issues", len(snap.Raw.FilteredIssues), len(snap.Keys.FilteredIssueKeys))
	}
}

func TestRunJiraAppendsWorklogWindow(t *testing.T) {
	client := &fakeClient{filterJQL: "project = NBSSPORTAL"}
	store, err := snapshot.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	pipe := NewPipeline(client, store, testConfig(t), nil)

	err = pipe.Run(context.Background(), Params{
		Mode: ModeJira, FilterID: "1", DateFrom: "2025-01-01", DateTo: "2025-01-31",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(client.searches) != 1 {
		t.Fatalf("expected 1 search, got %d", len(client.searches))
	}
	jql := client.searches[0]
	if !strings.Contains(jql, `worklogDate >= "2025-01-01"`) || !strings.Contains(jql, `worklogDate <= "2025-01-31"`) {
		t.Errorf("worklog window missing from query: %s", jql)
	}
	if !strings.Contains(jql, "(project = NBSSPORTAL)") {
		t.Errorf("base query must be parenthesized: %s", jql)
	}
}

func TestRunCLMBuildsKeyIndex(t *testing.T) {
	est := issue("EST-1", "EST", "Task", "Open", 0)
	est.Fields.OriginalEstimate = int64Ptr(2 * 8 * 3600)
	est.Fields.Components = []jira.ComponentDTO{{Name: "NBSSPORTAL"}}

	client := &fakeClient{
		filterJQL: "filter-clm-seed",
		responses: map[string][]jira.IssueDTO{
			"filter-clm-seed":  {issue("CLM-1", "CLM", "Error", "Open", 0)},
			"project = EST":    {est},
			`"links CLM to"`:   {issue("IMP-1", "CLMIMP", "Improvement from CLM", "Open", 0)},
			`"is realized in"`: {issue("NBSSPORTAL-1", "NBSSPORTAL", "Task", "Open", 7200)},
		},
	}
	store, err := snapshot.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	pipe := NewPipeline(client, store, testConfig(t), NewState())

	if err := pipe.Run(context.Background(), Params{Mode: ModeCLM}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	latest, err := store.Latest()
	if err != nil || latest == nil {
		t.Fatalf("Latest: %+v, %v", latest, err)
	}
	if latest.CLMIssuesCount != 1 || latest.ESTIssuesCount != 1 ||
		latest.ImprovementIssuesCount != 1 || latest.ImplementationIssuesCount != 1 {
		t.Errorf("graph counts = %+v", latest)
	}
	if latest.OpenTasksCount != 1 {
		t.Errorf("open tasks = %d, want the implementation issue with logged time", latest.OpenTasksCount)
	}

	snap, err := store.Read(latest.Timestamp)
	if err != nil {
		t.Fatal(err)
	}
	impl := make(map[string]bool)
	for _, key := range snap.Keys.ImplementationIssueKeys {
		impl[key] = true
	}
	for _, key := range snap.Keys.FilteredIssueKeys {
		if !impl[key] {
			t.Errorf("filtered key %s is not an implementation issue", key)
		}
	}
	for project, keys := range snap.Keys.ProjectIssueMapping {
		for _, key := range keys {
			if !impl[key] {
				t.Errorf("mapped key %s under %s is not an implementation issue", key, project)
			}
		}
	}
	if len(snap.Raw.AdditionalData.ESTIssues) != 1 {
		t.Errorf("EST issues missing from raw payload")
	}
}

func TestRunRequiresQuery(t *testing.T) {
	store, err := snapshot.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	pipe := NewPipeline(&fakeClient{}, store, testConfig(t), nil)

	if err := pipe.Run(context.Background(), Params{Mode: ModeJira}); err == nil {
		t.Error("jira mode without filter or JQL must fail")
	}
	if err := pipe.Run(context.Background(), Params{Mode: "bogus"}); err == nil {
		t.Error("unknown mode must fail")
	}
}
