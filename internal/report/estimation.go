package report

import (
	"time"

	"clm-insight/internal/jira"

	"github.com/rs/zerolog/log"
)

const newFeatureTypeName = "New Feature"

// Change classifications for estimate drift.
const (
	EstimateIncreased = "increased"
	EstimateDecreased = "decreased"
	EstimateUnchanged = "unchanged"
)

// EstimationEntry is one issue (or subtask, level 1) in the drift report.
type EstimationEntry struct {
	IssueKey                  string   `json:"issue_key"`
	Summary                   string   `json:"summary"`
	IssueType                 string   `json:"issue_type"`
	Created                   string   `json:"created"`
	HistoricalEstimateSeconds int64    `json:"historical_estimate_seconds"`
	HistoricalEstimateDays    float64  `json:"historical_estimate_days"`
	CurrentEstimateSeconds    int64    `json:"current_estimate_seconds"`
	CurrentEstimateDays       float64  `json:"current_estimate_days"`
	ParentKey                 string   `json:"parent_key,omitempty"`
	Level                     int      `json:"level"`
	Sprints                   []string `json:"sprints"`
	Difference                float64  `json:"difference"`
	Status                    string   `json:"status"`
}

// EstimationMetrics aggregates drift per issue type.
type EstimationMetrics struct {
	Count      int     `json:"count"`
	Historical float64 `json:"historical"`
	Current    float64 `json:"current"`
	Difference float64 `json:"difference"`
}

// EstimationTotals aggregates drift over the whole run.
type EstimationTotals struct {
	TotalIssues     int     `json:"total_issues"`
	TotalHistorical float64 `json:"total_historical"`
	TotalCurrent    float64 `json:"total_current"`
	Difference      float64 `json:"difference"`
}

// EstimationParams records which variant of the report was produced.
type EstimationParams struct {
	SprintFilter bool `json:"sprint_filter"`
	AllTasks     bool `json:"all_tasks"`
}

// EstimationReport compares current estimates against those in effect at
// the cutoff date.
type EstimationReport struct {
	Timestamp        string                       `json:"timestamp"`
	Date             string                       `json:"date"`
	TotalMetrics     EstimationTotals             `json:"total_metrics"`
	IssueTypeMetrics map[string]EstimationMetrics `json:"issue_type_metrics"`
	Results          []EstimationEntry            `json:"results"`
	Parameters       EstimationParams             `json:"parameters"`
}

func classifyDrift(difference float64) string {
	switch {
	case difference > 0:
		return EstimateIncreased
	case difference < 0:
		return EstimateDecreased
	default:
		return EstimateUnchanged
	}
}

func inTargetSprints(sprints []jira.SprintDTO) bool {
	for _, sprint := range sprints {
		for _, id := range sprintScheduleIDs {
			if sprint.ID == id {
				return true
			}
		}
	}
	return false
}

func sprintNames(sprints []jira.SprintDTO) []string {
	names := make([]string, 0, len(sprints))
	for _, sprint := range sprints {
		names = append(names, sprint.Name)
	}
	return names
}

// BuildEstimationReport produces the estimate-drift report. New Feature
// issues roll up their subtask estimates instead of their own; subtasks
// created after the cutoff contribute nothing to the historical side.
func BuildEstimationReport(issues []jira.IssueDTO, subtasksByParent map[string][]jira.IssueDTO,
	cutoff time.Time, params EstimationParams) *EstimationReport {

	now := time.Now()
	out := &EstimationReport{
		Timestamp:        now.Format("20060102"),
		Date:             now.Format("2006-01-02"),
		IssueTypeMetrics: make(map[string]EstimationMetrics),
		Parameters:       params,
	}

	included := 0
	for _, issue := range issues {
		issueType := issue.Fields.IssueType.Name
		if !params.AllTasks && issueType != newFeatureTypeName {
			log.Debug().Str("key", issue.Key).Str("type", issueType).
				Msg("Skipping non New Feature issue")
			continue
		}

		var sprints []jira.SprintDTO
		if params.SprintFilter {
			sprints = SprintsAt(issue, cutoff)
			if !inTargetSprints(sprints) {
				log.Debug().Str("key", issue.Key).Msg("Issue outside target sprints, skipped")
				continue
			}
		} else {
			sprints = issue.Fields.Sprint
		}
		included++

		var currentSeconds int64
		if issue.Fields.OriginalEstimate != nil {
			currentSeconds = *issue.Fields.OriginalEstimate
		}
		historicalSeconds := EstimateAt(issue, cutoff)

		var subtaskCurrent, subtaskHistorical int64
		var subtaskEntries []EstimationEntry
		for _, subtask := range subtasksByParent[issue.Key] {
			var stCurrent int64
			if subtask.Fields.OriginalEstimate != nil {
				stCurrent = *subtask.Fields.OriginalEstimate
			}
			stHistorical := EstimateAt(subtask, cutoff)

			if created, err := jira.ParseTime(subtask.Fields.Created); err == nil && !created.After(cutoff) {
				subtaskHistorical += stHistorical
			}
			subtaskCurrent += stCurrent

			var stSprints []jira.SprintDTO
			if params.SprintFilter {
				stSprints = SprintsAt(subtask, cutoff)
			} else {
				stSprints = subtask.Fields.Sprint
			}

			stDifference := SecondsToDays(stCurrent) - SecondsToDays(stHistorical)
			subtaskEntries = append(subtaskEntries, EstimationEntry{
				IssueKey:                  subtask.Key,
				Summary:                   subtask.Fields.Summary,
				IssueType:                 subtask.Fields.IssueType.Name,
				Created:                   subtask.Fields.Created,
				HistoricalEstimateSeconds: stHistorical,
				HistoricalEstimateDays:    SecondsToDays(stHistorical),
				CurrentEstimateSeconds:    stCurrent,
				CurrentEstimateDays:       SecondsToDays(stCurrent),
				ParentKey:                 issue.Key,
				Level:                     1,
				Sprints:                   sprintNames(stSprints),
				Difference:                stDifference,
				Status:                    classifyDrift(stDifference),
			})
		}

		finalCurrent := currentSeconds
		finalHistorical := historicalSeconds
		if issueType == newFeatureTypeName {
			finalCurrent = subtaskCurrent
			finalHistorical = subtaskHistorical
		}

		difference := SecondsToDays(finalCurrent) - SecondsToDays(finalHistorical)
		out.Results = append(out.Results, EstimationEntry{
			IssueKey:                  issue.Key,
			Summary:                   issue.Fields.Summary,
			IssueType:                 issueType,
			Created:                   issue.Fields.Created,
			HistoricalEstimateSeconds: finalHistorical,
			HistoricalEstimateDays:    SecondsToDays(finalHistorical),
			CurrentEstimateSeconds:    finalCurrent,
			CurrentEstimateDays:       SecondsToDays(finalCurrent),
			Level:                     0,
			Sprints:                   sprintNames(sprints),
			Difference:                difference,
			Status:                    classifyDrift(difference),
		})
		out.Results = append(out.Results, subtaskEntries...)

		typeMetrics := out.IssueTypeMetrics[issueType]
		typeMetrics.Count++
		typeMetrics.Historical += SecondsToDays(finalHistorical)
		typeMetrics.Current += SecondsToDays(finalCurrent)
		typeMetrics.Difference += difference
		out.IssueTypeMetrics[issueType] = typeMetrics

		out.TotalMetrics.TotalIssues++
		out.TotalMetrics.TotalHistorical += SecondsToDays(finalHistorical)
		out.TotalMetrics.TotalCurrent += SecondsToDays(finalCurrent)
		out.TotalMetrics.Difference += difference
	}

	log.Info().Int("processed", len(issues)).Int("included", included).
		Msg("Estimation report built")
	return out
}
