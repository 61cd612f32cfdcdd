package snapshot

import (
	"clm-insight/internal/jira"
)

// Summary is the authoritative per-day record; a day exists for readers
// only when this file is present.
type Summary struct {
	Date      string `json:"date"`
	Timestamp string `json:"timestamp"`

	TotalIssues            int     `json:"total_issues"`
	TotalEstimateHours     float64 `json:"total_estimate_hours"`
	TotalTimeSpentHours    float64 `json:"total_time_spent_hours"`
	TotalTimeSpentDays     float64 `json:"total_time_spent_days"`
	AvgEstimateHours       float64 `json:"avg_estimate_hours"`
	AvgTimeSpentHours      float64 `json:"avg_time_spent_hours"`
	OverallEfficiency      float64 `json:"overall_efficiency"`
	ProjectedTimeSpentDays float64 `json:"projected_time_spent_days"`

	DaysPassed        int     `json:"days_passed"`
	TotalWorkingDays  int     `json:"total_working_days"`
	ProjectBudgetDays float64 `json:"project_budget_days"`

	OpenTasksData map[string]int `json:"open_tasks_data"`

	CLMIssuesCount            int `json:"clm_issues_count"`
	ESTIssuesCount            int `json:"est_issues_count"`
	ImprovementIssuesCount    int `json:"improvement_issues_count"`
	ImplementationIssuesCount int `json:"implementation_issues_count"`
	FilteredIssuesCount       int `json:"filtered_issues_count"`
	OpenTasksCount            int `json:"open_tasks_count"`
	ClosedNoEvidenceCount     int `json:"closed_no_evidence_count"`
	NoTransitionsCount        int `json:"no_transitions_count"`

	RefreshInterval int `json:"refresh_interval"`
}

// RawIssues is the full issue payload of a day.
type RawIssues struct {
	FilteredIssues          []jira.IssueDTO `json:"filtered_issues"`
	AllImplementationIssues []jira.IssueDTO `json:"all_implementation_issues"`
	AdditionalData          AdditionalData  `json:"additional_data"`
}

// AdditionalData carries the auxiliary graph sets.
type AdditionalData struct {
	CLMIssues         []jira.IssueDTO `json:"clm_issues"`
	ESTIssues         []jira.IssueDTO `json:"est_issues"`
	ImprovementIssues []jira.IssueDTO `json:"improvement_issues"`
}

// KeyIndex is the per-category key listing under data/clm_issue_keys.json.
type KeyIndex struct {
	CLMIssueKeys            []string            `json:"clm_issue_keys"`
	ESTIssueKeys            []string            `json:"est_issue_keys"`
	ImprovementIssueKeys    []string            `json:"improvement_issue_keys"`
	ImplementationIssueKeys []string            `json:"implementation_issue_keys"`
	FilteredIssueKeys       []string            `json:"filtered_issue_keys"`
	OpenTasksIssueKeys      []string            `json:"open_tasks_issue_keys"`
	ClosedTaskKeys          []string            `json:"closed_task_keys"`
	ProjectIssueMapping     map[string][]string `json:"project_issue_mapping"`
}

// Snapshot is everything one analysis run persists for a day. Metrics
// entries become individual files under metrics/.
type Snapshot struct {
	Summary Summary
	Raw     RawIssues
	Keys    KeyIndex
	Metrics map[string]interface{}
}
