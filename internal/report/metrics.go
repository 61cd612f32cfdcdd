package report

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"clm-insight/internal/jira"

	"github.com/rs/zerolog/log"
)

var (
	openTerms   = []string{"OPEN", "NEW"}
	closedTerms = []string{"CLOSED", "RESOLVED", "DONE"}
)

// StatusCategories partitions the statuses present in the row table into
// open, closed and unknown by case-insensitive substring tests.
type StatusCategories struct {
	All     []string `json:"all_statuses"`
	Open    []string `json:"open_statuses"`
	Closed  []string `json:"closed_statuses"`
	Unknown []string `json:"unknown_statuses"`
}

// ClassifyStatuses inspects the row table. When nothing matches the open
// terms the literal "Open" status is substituted so downstream charts are
// never silently empty.
func ClassifyStatuses(rows []Row) StatusCategories {
	seen := make(map[string]bool)
	var cats StatusCategories
	for _, row := range rows {
		if seen[row.Status] {
			continue
		}
		seen[row.Status] = true
		cats.All = append(cats.All, row.Status)

		lower := strings.ToLower(row.Status)
		switch {
		case containsAnyTerm(lower, openTerms):
			cats.Open = append(cats.Open, row.Status)
		case containsAnyTerm(lower, closedTerms):
			cats.Closed = append(cats.Closed, row.Status)
		default:
			cats.Unknown = append(cats.Unknown, row.Status)
		}
	}

	if len(cats.Open) == 0 {
		log.Warn().Msg("No open statuses found, using default 'Open' status only")
		cats.Open = []string{"Open"}
	}
	return cats
}

func containsAnyTerm(statusLower string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(statusLower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// ChartData is the aggregate record consumed by the dashboard.
type ChartData struct {
	Projects            []string            `json:"projects"`
	ProjectCounts       map[string]int      `json:"project_counts"`
	ProjectEstimates    map[string]float64  `json:"project_estimates"`
	ProjectTimeSpent    map[string]float64  `json:"project_time_spent"`
	ProjectCLMEstimates map[string]float64  `json:"project_clm_estimates"`
	ProjectIssueMapping map[string][]string `json:"project_issue_mapping"`
	SpecialCharts       SpecialCharts       `json:"special_charts"`
}

// SpecialCharts carries the derived issue subsets.
type SpecialCharts struct {
	NoTransitions    BreakdownChart `json:"no_transitions"`
	OpenTasks        BreakdownChart `json:"open_tasks"`
	ClosedNoEvidence BreakdownChart `json:"closed_no_evidence"`
}

// BreakdownChart is a count with its per-project decomposition and keys.
type BreakdownChart struct {
	Count     int            `json:"count"`
	ByProject map[string]int `json:"by_project"`
	IssueKeys []string       `json:"issue_keys"`
}

// BuildChartData aggregates the row table into the dashboard record.
// clmEstimates comes from the component mapper; byKey is the raw issue
// lookup used by the merge-request heuristic.
func BuildChartData(rows []Row, clmEstimates map[string]float64, byKey map[string]jira.IssueDTO) ChartData {
	data := ChartData{
		ProjectCounts:       make(map[string]int),
		ProjectEstimates:    make(map[string]float64),
		ProjectTimeSpent:    make(map[string]float64),
		ProjectCLMEstimates: make(map[string]float64),
		ProjectIssueMapping: make(map[string][]string),
	}

	projectSet := make(map[string]bool)
	for _, row := range rows {
		projectSet[row.Project] = true
		data.ProjectCounts[row.Project]++
		data.ProjectEstimates[row.Project] += row.OriginalEstimateHours
		data.ProjectTimeSpent[row.Project] += row.TimeSpentHours
		data.ProjectIssueMapping[row.Project] = append(data.ProjectIssueMapping[row.Project], row.IssueKey)
	}
	for project, hours := range clmEstimates {
		projectSet[project] = true
		data.ProjectCLMEstimates[project] = hours
	}

	for project := range projectSet {
		data.Projects = append(data.Projects, project)
	}
	sort.Strings(data.Projects)

	cats := ClassifyStatuses(rows)
	data.SpecialCharts.NoTransitions = breakdown(rows, func(r Row) bool { return r.NoTransitions })
	data.SpecialCharts.OpenTasks = breakdown(rows, func(r Row) bool {
		return statusIn(r.Status, cats.Open) && r.TimeSpentHours > 0
	})
	data.SpecialCharts.ClosedNoEvidence = breakdown(rows, func(r Row) bool {
		return isClosedWithoutEvidence(r, cats.Closed, byKey)
	})
	return data
}

func breakdown(rows []Row, match func(Row) bool) BreakdownChart {
	chart := BreakdownChart{ByProject: make(map[string]int)}
	for _, row := range rows {
		if !match(row) {
			continue
		}
		chart.Count++
		chart.ByProject[row.Project]++
		chart.IssueKeys = append(chart.IssueKeys, row.IssueKey)
	}
	return chart
}

func statusIn(status string, set []string) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

const (
	mrLinkTypeName = "mentioned on"
	mrKeyPrefix    = "MR-"
)

var mrPattern = regexp.MustCompile(`(?i)merge request|\bMR-\d+`)

// isClosedWithoutEvidence keeps closed rows carrying no sign of real work:
// no comments, no attachments, no links and no merge-request mention.
func isClosedWithoutEvidence(row Row, closedStatuses []string, byKey map[string]jira.IssueDTO) bool {
	if !statusIn(row.Status, closedStatuses) {
		return false
	}
	if row.HasComments || row.HasAttachments || row.HasLinks {
		return false
	}
	issue, ok := byKey[row.IssueKey]
	if !ok {
		return true
	}
	return !MentionedInMergeRequest(issue)
}

// MentionedInMergeRequest runs the MR heuristic over summary, description,
// comment bodies and "mentioned on" link peers.
func MentionedInMergeRequest(issue jira.IssueDTO) bool {
	if mrPattern.MatchString(issue.Fields.Summary) || mrPattern.MatchString(issue.Fields.Description) {
		return true
	}
	if issue.Fields.Comment != nil {
		for _, comment := range issue.Fields.Comment.Comments {
			if mrPattern.MatchString(comment.Body) {
				return true
			}
		}
	}
	for _, link := range issue.Fields.IssueLinks {
		if strings.EqualFold(link.Type.Name, mrLinkTypeName) &&
			strings.HasPrefix(link.Peer(issue.Key), mrKeyPrefix) {
			return true
		}
	}
	return false
}

// SummaryStats are the run-level scalars persisted in summary.json.
type SummaryStats struct {
	TotalIssues       int     `json:"total_issues"`
	TotalEstimateHrs  float64 `json:"total_estimate_hours"`
	TotalSpentHrs     float64 `json:"total_time_spent_hours"`
	AvgEstimateHrs    float64 `json:"avg_estimate_hours"`
	AvgSpentHrs       float64 `json:"avg_time_spent_hours"`
	OverallEfficiency float64 `json:"overall_efficiency"`
}

// Summarize computes run-level aggregates over the row table.
func Summarize(rows []Row) SummaryStats {
	var stats SummaryStats
	stats.TotalIssues = len(rows)
	for _, row := range rows {
		stats.TotalEstimateHrs += row.OriginalEstimateHours
		stats.TotalSpentHrs += row.TimeSpentHours
	}
	if stats.TotalIssues > 0 {
		stats.AvgEstimateHrs = stats.TotalEstimateHrs / float64(stats.TotalIssues)
		stats.AvgSpentHrs = stats.TotalSpentHrs / float64(stats.TotalIssues)
	}
	if stats.TotalEstimateHrs > 0 {
		stats.OverallEfficiency = stats.TotalSpentHrs / stats.TotalEstimateHrs
	}
	return stats
}

// WorkingDays counts Monday-Friday days in [start, end], inclusive.
// start == end on a weekday yields 1; on a weekend, 0.
func WorkingDays(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	days := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		switch day.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			days++
		}
	}
	return days
}

// ProjectedSpend is the burndown value for working-day index d out of w
// against a person-day budget.
func ProjectedSpend(budget float64, d, w int) float64 {
	if w == 0 {
		return 0
	}
	return budget * float64(d) / float64(w)
}
