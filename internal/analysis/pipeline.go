package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clm-insight/internal/config"
	"clm-insight/internal/jira"
	"clm-insight/internal/report"
	"clm-insight/internal/snapshot"

	"github.com/rs/zerolog/log"
)

// Analysis modes.
const (
	ModeJira = "jira"
	ModeCLM  = "clm"
)

// Params selects what one analysis run fetches.
type Params struct {
	Mode string

	// FilterID wins over JQL when both are set.
	FilterID string
	JQL      string

	// Worklog date window, YYYY-MM-DD; empty means unbounded.
	DateFrom string
	DateTo   string
}

// Pipeline orchestrates one analysis run: fetch, normalize, aggregate,
// persist. Failures inside a run are logged and surfaced through the
// progress sink; Run only returns an error for unusable parameters.
type Pipeline struct {
	client jira.Client
	store  *snapshot.Root
	cfg    *config.AppConfig
	sink   ProgressSink
}

func NewPipeline(client jira.Client, store *snapshot.Root, cfg *config.AppConfig, sink ProgressSink) *Pipeline {
	if sink == nil {
		sink = nopSink{}
	}
	return &Pipeline{client: client, store: store, cfg: cfg, sink: sink}
}

// Run executes one analysis pass and writes the day snapshot.
func (p *Pipeline) Run(ctx context.Context, params Params) error {
	if err := p.client.CheckConnection(ctx); err != nil {
		// Probes are advisory; the run proceeds and fails later if the
		// server really is unreachable.
		log.Warn().Err(err).Msg("Jira connection probe failed")
		p.sink.SetMessage(err.Error())
	}

	switch params.Mode {
	case ModeCLM:
		return p.runCLM(ctx, params)
	case ModeJira, "":
		return p.runJira(ctx, params)
	default:
		return fmt.Errorf("unknown analysis mode %q", params.Mode)
	}
}

func (p *Pipeline) runJira(ctx context.Context, params Params) error {
	jql, err := p.resolveJQL(ctx, params.FilterID, params.JQL)
	if err != nil {
		return err
	}
	if cond := worklogConditions(params.DateFrom, params.DateTo); cond != "" {
		if jql != "" {
			jql = fmt.Sprintf("(%s) AND (%s)", jql, cond)
		} else {
			jql = cond
		}
	}

	p.sink.SetMessage("Fetching issues from Jira")
	p.sink.SetProgress(10)
	issues, err := p.client.SearchIssues(ctx, jql, jira.SearchOptions{
		Fields:          report.IssueFields,
		ExpandChangelog: true,
	})
	if err != nil {
		return fmt.Errorf("issue fetch failed: %w", err)
	}
	p.sink.SetTotal(len(issues))
	p.sink.SetProgress(50)
	if len(issues) == 0 {
		p.sink.SetMessage("No issues found, check query or credentials")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.sink.SetMessage("Processing issue data")
	p.sink.SetProgress(70)
	rows := report.NormalizeIssues(issues)
	byKey := report.IndexByKey(issues)
	chart := report.BuildChartData(rows, nil, byKey)
	stats := report.Summarize(rows)

	p.sink.SetProgress(90)
	snap := p.buildSnapshot(issues, issues, nil, rows, chart, stats, nil)
	if err := p.store.Write(snap); err != nil {
		return fmt.Errorf("snapshot write failed: %w", err)
	}
	p.sink.SetMessage("Analysis complete")
	p.sink.SetProgress(100)
	return nil
}

func (p *Pipeline) runCLM(ctx context.Context, params Params) error {
	filterID := params.FilterID
	if filterID == "" && params.JQL == "" {
		filterID = p.cfg.CLMFilterID
	}
	clmJQL, err := p.resolveJQL(ctx, filterID, params.JQL)
	if err != nil {
		return err
	}

	p.sink.SetMessage("Fetching CLM issues")
	p.sink.SetProgress(5)
	seeds, err := p.client.SearchIssues(ctx, clmJQL, jira.SearchOptions{
		Fields:          report.IssueFields,
		ExpandChangelog: true,
	})
	if err != nil {
		return fmt.Errorf("CLM fetch failed: %w", err)
	}
	if len(seeds) == 0 {
		p.sink.SetMessage("No CLM issues found, check query or credentials")
		return nil
	}

	p.sink.SetMessage("Resolving related EST, Improvement and implementation issues")
	p.sink.SetProgress(25)
	related, err := report.NewResolver(p.client).Resolve(ctx, seeds)
	if err != nil {
		return fmt.Errorf("graph traversal failed: %w", err)
	}
	p.sink.SetProgress(40)
	if err := ctx.Err(); err != nil {
		return err
	}

	projects := implementationProjects(related.Implementation)
	filtered := related.Implementation
	if cond := worklogConditions(params.DateFrom, params.DateTo); cond != "" {
		p.sink.SetMessage("Filtering issues by worklog date")
		filtered = p.fetchWorklogFiltered(ctx, projects, cond)
	}

	p.sink.SetTotal(len(filtered))
	p.sink.SetMessage("Processing issue data")
	p.sink.SetProgress(60)
	rows := report.NormalizeIssues(filtered)
	byKey := report.IndexByKey(related.All)
	docProjects := report.DocumentationProjects(related.All)
	clmEstimates := report.CLMEstimates(related.EST, projects, docProjects)
	chart := report.BuildChartData(rows, clmEstimates, byKey)
	stats := report.Summarize(rows)

	p.sink.SetProgress(90)
	snap := p.buildSnapshot(filtered, related.Implementation, related, rows, chart, stats, seeds)
	if err := p.store.Write(snap); err != nil {
		return fmt.Errorf("snapshot write failed: %w", err)
	}
	p.sink.SetMessage("Analysis complete")
	p.sink.SetProgress(100)
	return nil
}

// fetchWorklogFiltered re-queries each implementation project for issues
// carrying worklogs in the window. A failed project query is skipped so
// the run degrades instead of aborting.
func (p *Pipeline) fetchWorklogFiltered(ctx context.Context, projects []string, dateCond string) []jira.IssueDTO {
	var filtered []jira.IssueDTO
	for _, project := range projects {
		jql := fmt.Sprintf("project = %q AND (%s)", project, dateCond)
		issues, err := p.client.SearchIssues(ctx, jql, jira.SearchOptions{
			Fields:          report.IssueFields,
			ExpandChangelog: true,
		})
		if err != nil {
			log.Warn().Err(err).Str("project", project).Msg("Worklog date query failed, skipping project")
			continue
		}
		filtered = append(filtered, issues...)
		p.sink.SetMessage(fmt.Sprintf("Found %d issues with worklogs", len(filtered)))
	}
	return filtered
}

func (p *Pipeline) buildSnapshot(filtered, implementation []jira.IssueDTO, related *report.RelatedIssues,
	rows []report.Row, chart report.ChartData, stats report.SummaryStats, seeds []jira.IssueDTO) *snapshot.Snapshot {

	now := time.Now()
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	yearEnd := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, now.Location())
	daysPassed := report.WorkingDays(yearStart, now)
	totalWorkingDays := report.WorkingDays(yearStart, yearEnd)

	spentDays := stats.TotalSpentHrs / 8
	summary := snapshot.Summary{
		Date:      now.Format("2006-01-02"),
		Timestamp: now.Format("20060102"),

		TotalIssues:            stats.TotalIssues,
		TotalEstimateHours:     stats.TotalEstimateHrs,
		TotalTimeSpentHours:    stats.TotalSpentHrs,
		TotalTimeSpentDays:     spentDays,
		AvgEstimateHours:       stats.AvgEstimateHrs,
		AvgTimeSpentHours:      stats.AvgSpentHrs,
		OverallEfficiency:      stats.OverallEfficiency,
		ProjectedTimeSpentDays: report.ProjectedSpend(p.cfg.ProjectBudget, daysPassed, totalWorkingDays),

		DaysPassed:        daysPassed,
		TotalWorkingDays:  totalWorkingDays,
		ProjectBudgetDays: p.cfg.ProjectBudget,

		OpenTasksData: chart.SpecialCharts.OpenTasks.ByProject,

		FilteredIssuesCount:   len(filtered),
		OpenTasksCount:        chart.SpecialCharts.OpenTasks.Count,
		ClosedNoEvidenceCount: chart.SpecialCharts.ClosedNoEvidence.Count,
		NoTransitionsCount:    chart.SpecialCharts.NoTransitions.Count,

		RefreshInterval: p.cfg.RefreshInterval,
	}

	keys := snapshot.KeyIndex{
		ImplementationIssueKeys: keysOf(implementation),
		FilteredIssueKeys:       keysOf(filtered),
		OpenTasksIssueKeys:      chart.SpecialCharts.OpenTasks.IssueKeys,
		ClosedTaskKeys:          closedKeys(rows),
		ProjectIssueMapping:     chart.ProjectIssueMapping,
	}

	raw := snapshot.RawIssues{
		FilteredIssues:          filtered,
		AllImplementationIssues: implementation,
	}

	metrics := map[string]interface{}{
		"chart_data":        chart,
		"status_categories": report.ClassifyStatuses(rows),
	}

	if related != nil {
		summary.CLMIssuesCount = len(seeds)
		summary.ESTIssuesCount = len(related.EST)
		summary.ImprovementIssuesCount = len(related.Improvements)
		summary.ImplementationIssuesCount = len(related.Implementation)

		keys.CLMIssueKeys = keysOf(seeds)
		keys.ESTIssueKeys = keysOf(related.EST)
		keys.ImprovementIssueKeys = keysOf(related.Improvements)

		raw.AdditionalData = snapshot.AdditionalData{
			CLMIssues:         seeds,
			ESTIssues:         related.EST,
			ImprovementIssues: related.Improvements,
		}
		metrics["clm_metrics"] = map[string]interface{}{
			"clm_issues_count":         len(seeds),
			"est_issues_count":         len(related.EST),
			"improvement_issues_count": len(related.Improvements),
			"linked_issues_count":      len(related.Implementation),
			"filtered_issues_count":    len(filtered),
		}
	}

	return &snapshot.Snapshot{Summary: summary, Raw: raw, Keys: keys, Metrics: metrics}
}

// RunEstimation fetches the estimation filter set, pulls subtasks for the
// rollup and persists the report.
func (p *Pipeline) RunEstimation(ctx context.Context, filterID, jql string, params report.EstimationParams) (*report.EstimationReport, error) {
	resolved, err := p.resolveJQL(ctx, filterID, jql)
	if err != nil {
		return nil, err
	}

	p.sink.SetMessage("Fetching estimation issues")
	p.sink.SetProgress(10)
	issues, err := p.client.SearchIssues(ctx, resolved, jira.SearchOptions{
		Fields:          append(append([]string{}, report.IssueFields...), "sprint"),
		ExpandChangelog: true,
	})
	if err != nil {
		return nil, fmt.Errorf("estimation fetch failed: %w", err)
	}
	p.sink.SetTotal(len(issues))

	p.sink.SetMessage("Fetching subtasks for rollup")
	p.sink.SetProgress(50)
	subtasks := p.fetchSubtasks(ctx, issues)

	rep := report.BuildEstimationReport(issues, subtasks, report.DefaultCutoff, params)
	if err := snapshot.SaveEstimationReport(p.cfg.EstimationDir, rep); err != nil {
		return nil, fmt.Errorf("estimation report write failed: %w", err)
	}
	p.sink.SetMessage("Estimation analysis complete")
	p.sink.SetProgress(100)
	return rep, nil
}

func (p *Pipeline) fetchSubtasks(ctx context.Context, issues []jira.IssueDTO) map[string][]jira.IssueDTO {
	subtasks := make(map[string][]jira.IssueDTO)
	for _, issue := range issues {
		for _, ref := range issue.Fields.Subtasks {
			sub, err := p.client.GetIssue(ctx, ref.Key, jira.SearchOptions{
				Fields:          report.IssueFields,
				ExpandChangelog: true,
			})
			if err != nil {
				log.Warn().Err(err).Str("parent", issue.Key).Str("subtask", ref.Key).
					Msg("Subtask fetch failed, rollup will be partial")
				continue
			}
			subtasks[issue.Key] = append(subtasks[issue.Key], *sub)
		}
	}
	return subtasks
}

// DailyCollect is the scheduled refresh: seed the store if empty, then
// run a CLM analysis with the default filter.
func (p *Pipeline) DailyCollect(ctx context.Context) error {
	if err := p.store.EnsureSeedData(p.cfg.ProjectBudget, p.cfg.RefreshInterval); err != nil {
		log.Warn().Err(err).Msg("Seed data check failed")
	}
	return p.Run(ctx, Params{Mode: ModeCLM})
}

func (p *Pipeline) resolveJQL(ctx context.Context, filterID, jql string) (string, error) {
	if filterID != "" {
		resolved, err := p.client.GetFilterJQL(ctx, filterID)
		if err != nil {
			return "", fmt.Errorf("filter %s lookup failed: %w", filterID, err)
		}
		return resolved, nil
	}
	if jql == "" {
		return "", fmt.Errorf("either a filter id or a JQL query is required")
	}
	return jql, nil
}

func worklogConditions(dateFrom, dateTo string) string {
	var conditions []string
	if dateFrom != "" {
		conditions = append(conditions, fmt.Sprintf("worklogDate >= %q", dateFrom))
	}
	if dateTo != "" {
		conditions = append(conditions, fmt.Sprintf("worklogDate <= %q", dateTo))
	}
	return strings.Join(conditions, " AND ")
}

func implementationProjects(issues []jira.IssueDTO) []string {
	seen := make(map[string]bool)
	var projects []string
	for _, issue := range issues {
		key := issue.Fields.Project.Key
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		projects = append(projects, key)
	}
	return projects
}

func keysOf(issues []jira.IssueDTO) []string {
	keys := make([]string, 0, len(issues))
	for _, issue := range issues {
		keys = append(keys, issue.Key)
	}
	return keys
}

func closedKeys(rows []report.Row) []string {
	cats := report.ClassifyStatuses(rows)
	closed := make(map[string]bool, len(cats.Closed))
	for _, status := range cats.Closed {
		closed[status] = true
	}
	var keys []string
	for _, row := range rows {
		if closed[row.Status] {
			keys = append(keys, row.IssueKey)
		}
	}
	return keys
}
