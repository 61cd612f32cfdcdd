package report

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"clm-insight/internal/jira"

	"github.com/rs/zerolog/log"
)

// DefaultCutoff is the reference point for historical estimate queries.
var DefaultCutoff = time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)

// EstimateAt reconstructs the original estimate (seconds) that was in
// effect at the cutoff. Issues created after the cutoff contribute 0.
func EstimateAt(issue jira.IssueDTO, cutoff time.Time) int64 {
	created, err := jira.ParseTime(issue.Fields.Created)
	if err == nil && created.After(cutoff) {
		return 0
	}

	var current int64
	if issue.Fields.OriginalEstimate != nil {
		current = *issue.Fields.OriginalEstimate
	}
	if issue.Changelog == nil {
		return current
	}

	// Walk histories newest-first, rewinding each estimate change that
	// happened after the cutoff.
	histories := issue.Changelog.Histories
	for i := len(histories) - 1; i >= 0; i-- {
		at, err := jira.ParseTime(histories[i].Created)
		if err != nil {
			log.Debug().Str("key", issue.Key).Str("created", histories[i].Created).
				Msg("Skipping history entry with unparseable timestamp")
			continue
		}
		if !at.After(cutoff) {
			break
		}
		for _, item := range histories[i].Items {
			if item.Field == "timeoriginalestimate" && item.From != "" {
				if v, err := strconv.ParseInt(item.From, 10, 64); err == nil {
					current = v
				}
			}
		}
	}
	return current
}

// SprintsAt reconstructs sprint membership at the cutoff by the same
// reverse traversal. When no sprint change is visible, the current
// membership is returned as the best available answer.
func SprintsAt(issue jira.IssueDTO, cutoff time.Time) []jira.SprintDTO {
	reconstructed := []jira.SprintDTO(issue.Fields.Sprint)
	if issue.Changelog == nil {
		return reconstructed
	}

	histories := issue.Changelog.Histories
	for i := len(histories) - 1; i >= 0; i-- {
		at, err := jira.ParseTime(histories[i].Created)
		if err != nil {
			continue
		}
		if !at.After(cutoff) {
			break
		}
		for _, item := range histories[i].Items {
			if item.Field == "Sprint" {
				reconstructed = ParseSprintString(item.FromString)
			}
		}
	}

	if len(reconstructed) == 0 {
		return issue.Fields.Sprint
	}
	return reconstructed
}

var (
	sprintNameIDPattern = regexp.MustCompile(`([^\[\],]+?)\s*\[\s*(\d+)\s*\]`)
	sprintBareIDPattern = regexp.MustCompile(`\[\s*(\d+)\s*\]`)
	sprintSchemePattern = regexp.MustCompile(`NBSS\s+(\d{2}Q[1-4])`)
)

// Quarterly sprint ids for the NBSS naming scheme.
var sprintScheduleIDs = map[string]int{
	"25Q1": 14638,
	"25Q2": 14639,
	"25Q3": 14640,
	"25Q4": 14641,
}

// ParseSprintString extracts sprint identifiers from the human-readable
// changelog value. Three patterns are tried in priority order: "name [ id ]"
// pairs, bare "[ id ]" occurrences, and the NBSS quarterly naming scheme.
func ParseSprintString(s string) []jira.SprintDTO {
	if s == "" {
		return nil
	}

	if matches := sprintNameIDPattern.FindAllStringSubmatch(s, -1); len(matches) > 0 {
		sprints := make([]jira.SprintDTO, 0, len(matches))
		for _, m := range matches {
			id, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			sprints = append(sprints, jira.SprintDTO{ID: id, Name: strings.TrimSpace(m[1])})
		}
		if len(sprints) > 0 {
			return sprints
		}
	}

	if matches := sprintBareIDPattern.FindAllStringSubmatch(s, -1); len(matches) > 0 {
		sprints := make([]jira.SprintDTO, 0, len(matches))
		for _, m := range matches {
			id, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			sprints = append(sprints, jira.SprintDTO{ID: id, Name: "Sprint " + m[1]})
		}
		if len(sprints) > 0 {
			return sprints
		}
	}

	if matches := sprintSchemePattern.FindAllStringSubmatch(s, -1); len(matches) > 0 {
		var sprints []jira.SprintDTO
		for _, m := range matches {
			id, ok := sprintScheduleIDs[m[1]]
			if !ok {
				log.Warn().Str("quarter", m[1]).Msg("Sprint quarter missing from schedule table")
				continue
			}
			sprints = append(sprints, jira.SprintDTO{ID: id, Name: "NBSS " + m[1]})
		}
		return sprints
	}

	return nil
}
