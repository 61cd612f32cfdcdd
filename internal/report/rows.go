package report

import (
	"clm-insight/internal/jira"

	"github.com/rs/zerolog/log"
)

// Row is one normalized issue in the analysis table. Status strings are
// preserved exactly as fetched; categorization happens in the metrics
// engine.
type Row struct {
	IssueKey              string  `json:"issue_key"`
	Project               string  `json:"project"`
	IssueType             string  `json:"issue_type"`
	OriginalEstimateHours float64 `json:"original_estimate_hours"`
	TimeSpentHours        float64 `json:"time_spent_hours"`
	Status                string  `json:"status"`
	StatusID              string  `json:"status_id"`
	StatusCategory        string  `json:"status_category"`
	HasComments           bool    `json:"has_comments"`
	HasAttachments        bool    `json:"has_attachments"`
	HasLinks              bool    `json:"has_links"`
	CreatedDate           string  `json:"created_date"`
	NoTransitions         bool    `json:"no_transitions"`
	Summary               string  `json:"summary"`
}

// SecondsToHours converts a nullable seconds value; nil and zero both map to 0.
func SecondsToHours(seconds *int64) float64 {
	if seconds == nil {
		return 0
	}
	return float64(*seconds) / 3600
}

// SecondsToDays converts seconds to person-days at 8 working hours per day.
func SecondsToDays(seconds int64) float64 {
	return float64(seconds) / 3600 / 8
}

// NormalizeIssues builds the row table from raw issues.
func NormalizeIssues(issues []jira.IssueDTO) []Row {
	rows := make([]Row, 0, len(issues))
	for _, issue := range issues {
		f := issue.Fields

		project := f.Project.Key
		if project == "" {
			project = "Unknown"
		}
		issueType := f.IssueType.Name
		if issueType == "" {
			issueType = "Unknown"
		}
		status := f.Status.Name
		if status == "" {
			status = "Unknown"
		}

		noTransitions := true
		if issue.Changelog != nil {
			for _, history := range issue.Changelog.Histories {
				for _, item := range history.Items {
					if item.Field == "status" {
						noTransitions = false
						break
					}
				}
				if !noTransitions {
					break
				}
			}
		}
		if noTransitions {
			log.Debug().Str("key", issue.Key).Str("status", status).
				Msg("Issue has no status transitions")
		}

		rows = append(rows, Row{
			IssueKey:              issue.Key,
			Project:               project,
			IssueType:             issueType,
			OriginalEstimateHours: SecondsToHours(f.OriginalEstimate),
			TimeSpentHours:        SecondsToHours(f.TimeSpent),
			Status:                status,
			StatusID:              f.Status.ID,
			StatusCategory:        f.Status.StatusCategory.Name,
			HasComments:           f.Comment != nil && len(f.Comment.Comments) > 0,
			HasAttachments:        len(f.Attachment) > 0,
			HasLinks:              len(f.IssueLinks) > 0,
			CreatedDate:           f.Created,
			NoTransitions:         noTransitions,
			Summary:               f.Summary,
		})
	}
	return rows
}

// IndexByKey builds the parallel lookup map over the same issues.
func IndexByKey(issues []jira.IssueDTO) map[string]jira.IssueDTO {
	byKey := make(map[string]jira.IssueDTO, len(issues))
	for _, issue := range issues {
		byKey[issue.Key] = issue
	}
	return byKey
}
