package snapshot

import (
	"time"

	"github.com/rs/zerolog/log"
)

// EnsureSeedData writes a week of placeholder summaries when the root is
// empty, so a freshly deployed dashboard has a timeline to draw.
func (r *Root) EnsureSeedData(budgetDays float64, refreshInterval int) error {
	timeline, err := r.Timeline()
	if err != nil {
		return err
	}
	if len(timeline) > 0 {
		return nil
	}
	log.Info().Msg("Snapshot root is empty, seeding initial dashboard data")

	now := time.Now()
	base := Summary{
		TotalTimeSpentDays:     100,
		TotalTimeSpentHours:    800,
		ProjectedTimeSpentDays: 110,
		DaysPassed:             85,
		TotalWorkingDays:       252,
		ProjectBudgetDays:      budgetDays,
		RefreshInterval:        refreshInterval,
		OpenTasksData: map[string]int{
			"NBSSPORTAL": 15,
			"UDB":        10,
			"CHM":        7,
			"NUS":        5,
			"ATS":        3,
		},
		CLMIssuesCount:            5,
		ESTIssuesCount:            10,
		ImprovementIssuesCount:    8,
		ImplementationIssuesCount: 50,
	}

	for i := 7; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		summary := base
		summary.Date = day.Format("2006-01-02")
		summary.Timestamp = day.Format("20060102")
		summary.TotalTimeSpentDays = 100 - float64(i)*5
		summary.TotalTimeSpentHours = summary.TotalTimeSpentDays * 8
		summary.ProjectedTimeSpentDays = summary.TotalTimeSpentDays * 1.1
		if err := r.WriteSummaryOnly(summary); err != nil {
			return err
		}
	}
	return nil
}
