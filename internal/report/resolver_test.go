package report

import (
	"context"
	"strings"
	"testing"

	"clm-insight/internal/jira"
)

type fakeSearcher struct {
	calls   int
	respond func(jql string) []jira.IssueDTO
}

func (f *fakeSearcher) SearchIssues(ctx context.Context, jql string, opts jira.SearchOptions) ([]jira.IssueDTO, error) {
	f.calls++
	if f.respond == nil {
		return nil, nil
	}
	return f.respond(jql), nil
}

func graphIssue(key, project, issueType string) jira.IssueDTO {
	issue := jira.IssueDTO{Key: key}
	issue.Fields.Project.Key = project
	issue.Fields.IssueType.Name = issueType
	return issue
}

func TestResolveEmptySeedMakesNoCalls(t *testing.T) {
	searcher := &fakeSearcher{}
	out, err := NewResolver(searcher).Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if searcher.calls != 0 {
		t.Errorf("expected no HTTP calls, got %d", searcher.calls)
	}
	if len(out.EST) != 0 || len(out.Improvements) != 0 || len(out.Implementation) != 0 || len(out.All) != 0 {
		t.Errorf("expected empty sets, got %+v", out)
	}
}

func graphRespond(jql string) []jira.IssueDTO {
	switch {
	case strings.HasPrefix(jql, "project = EST"):
		return []jira.IssueDTO{graphIssue("EST-1", "EST", "Estimation")}
	case strings.Contains(jql, `"links CLM to"`):
		return []jira.IssueDTO{graphIssue("IMP-1", "IMP", "Improvement from CLM")}
	case strings.Contains(jql, `"is realized in"`):
		return []jira.IssueDTO{graphIssue("IMP-SUB-1", "NBSSPORTAL", "Task")}
	case strings.Contains(jql, `parent = "IMP-SUB-1"`):
		return []jira.IssueDTO{graphIssue("IMP-SUB-1-a", "NBSSPORTAL", "Sub-task")}
	default:
		return nil
	}
}

func TestResolveGraphDepth(t *testing.T) {
	searcher := &fakeSearcher{respond: graphRespond}
	seeds := []jira.IssueDTO{graphIssue("CLM-1", "CLM", "Task")}

	out, err := NewResolver(searcher).Resolve(context.Background(), seeds)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(out.EST) != 1 || out.EST[0].Key != "EST-1" {
		t.Errorf("unexpected EST set: %+v", out.EST)
	}
	if len(out.Improvements) != 1 || out.Improvements[0].Key != "IMP-1" {
		t.Errorf("unexpected improvement set: %+v", out.Improvements)
	}
	if len(out.Implementation) != 2 {
		t.Fatalf("expected implementation set of 2, got %d", len(out.Implementation))
	}
	if out.Implementation[0].Key != "IMP-SUB-1" || out.Implementation[1].Key != "IMP-SUB-1-a" {
		t.Errorf("unexpected implementation order: %+v", out.Implementation)
	}
	if len(out.All) != 4 {
		t.Errorf("expected 4 issues in All, got %d", len(out.All))
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	seeds := []jira.IssueDTO{graphIssue("CLM-1", "CLM", "Task")}

	first, err := NewResolver(&fakeSearcher{respond: graphRespond}).Resolve(context.Background(), seeds)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := NewResolver(&fakeSearcher{respond: graphRespond}).Resolve(context.Background(), seeds)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(first.All) != len(second.All) {
		t.Fatalf("runs differ: %d vs %d issues", len(first.All), len(second.All))
	}
	for i := range first.All {
		if first.All[i].Key != second.All[i].Key {
			t.Errorf("position %d differs: %s vs %s", i, first.All[i].Key, second.All[i].Key)
		}
	}
}

func TestResolveDeduplicates(t *testing.T) {
	// Every hop returns the same implementation ticket.
	searcher := &fakeSearcher{respond: func(jql string) []jira.IssueDTO {
		if strings.HasPrefix(jql, "project = EST") {
			return nil
		}
		if strings.Contains(jql, `"links CLM to"`) {
			return []jira.IssueDTO{graphIssue("IMP-1", "IMP", "Improvement from CLM")}
		}
		return []jira.IssueDTO{graphIssue("DUP-1", "UDB", "Task")}
	}}
	seeds := []jira.IssueDTO{graphIssue("CLM-1", "CLM", "Task")}

	out, err := NewResolver(searcher).Resolve(context.Background(), seeds)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(out.Implementation) != 1 {
		t.Errorf("expected DUP-1 exactly once, got %+v", out.Implementation)
	}
}
