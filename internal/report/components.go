package report

import (
	"regexp"
	"strings"

	"clm-insight/internal/jira"

	"github.com/rs/zerolog/log"
)

// Match reasons reported for auditability.
const (
	ReasonSpecialCase   = "special-case"
	ReasonTailored      = "tailored"
	ReasonDocumentation = "documentation"
	ReasonPrefixMatch   = "prefix-match"
	ReasonNone          = "none"
)

const (
	tailoredPrefix      = "tailored."
	tailoredProjectKey  = "TAILORED_NBSS"
	docComponentName    = "DOC"
	docIssueTypeName    = "Documentation"
	maxDocFallback      = 3
	defaultEstimateDays = 3.0
)

// specialComponents maps component names straight to project keys,
// bypassing fuzzy matching.
var specialComponents = map[string][]string{
	"UNIGUI": {"NBSSPORTAL"},
}

// Mapping is the result of mapping one component to project keys.
type Mapping struct {
	Projects []string `json:"projects"`
	Reason   string   `json:"reason"`
}

// MapComponent maps a component name to the project keys that should
// receive its effort. Rules fire in strict order: special-case table,
// documentation components, fuzzy prefix match.
func MapComponent(component string, projects []string, docProjects []string) Mapping {
	if keys, ok := specialComponents[component]; ok {
		return Mapping{Projects: append([]string{}, keys...), Reason: ReasonSpecialCase}
	}

	if strings.HasPrefix(strings.ToLower(component), tailoredPrefix) {
		return Mapping{Projects: []string{tailoredProjectKey}, Reason: ReasonTailored}
	}

	if component == docComponentName {
		if len(docProjects) > 0 {
			return Mapping{Projects: append([]string{}, docProjects...), Reason: ReasonDocumentation}
		}
		fallback := projects
		if len(fallback) > maxDocFallback {
			fallback = fallback[:maxDocFallback]
		}
		return Mapping{Projects: append([]string{}, fallback...), Reason: ReasonDocumentation}
	}

	componentNorm := normalizeName(component)
	var matched []string
	for _, project := range projects {
		projectNorm := normalizeName(project)
		if len(componentNorm) >= 3 && len(projectNorm) >= 3 &&
			(strings.Contains(projectNorm, componentNorm[:3]) || strings.Contains(componentNorm, projectNorm[:3])) {
			matched = append(matched, project)
		}
	}
	if len(matched) > 0 {
		return Mapping{Projects: matched, Reason: ReasonPrefixMatch}
	}
	return Mapping{Reason: ReasonNone}
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]`)

func normalizeName(s string) string {
	return nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "")
}

// DocumentationProjects returns the distinct project keys of
// Documentation-type issues, in first-seen order.
func DocumentationProjects(issues []jira.IssueDTO) []string {
	seen := make(map[string]bool)
	var projects []string
	for _, issue := range issues {
		if !strings.EqualFold(issue.Fields.IssueType.Name, docIssueTypeName) {
			continue
		}
		key := issue.Fields.Project.Key
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		projects = append(projects, key)
	}
	return projects
}

// CLMEstimates distributes estimation-ticket effort across mapped
// projects. A ticket worth E days mapped to N projects contributes
// E×8/N hours to each; tickets without an estimate default to 3 days.
func CLMEstimates(estIssues []jira.IssueDTO, projects []string, docProjects []string) map[string]float64 {
	estimates := make(map[string]float64)
	for _, issue := range estIssues {
		days := defaultEstimateDays
		if issue.Fields.OriginalEstimate != nil && *issue.Fields.OriginalEstimate > 0 {
			days = SecondsToDays(*issue.Fields.OriginalEstimate)
		}

		targetSeen := make(map[string]bool)
		var targets []string
		for _, component := range issue.Fields.Components {
			mapping := MapComponent(component.Name, projects, docProjects)
			for _, project := range mapping.Projects {
				if targetSeen[project] {
					continue
				}
				targetSeen[project] = true
				targets = append(targets, project)
			}
		}

		if len(targets) == 0 {
			log.Warn().Str("key", issue.Key).Float64("days", days).
				Msg("Estimation ticket maps to no project, effort discarded")
			continue
		}

		share := days * 8 / float64(len(targets))
		for _, project := range targets {
			estimates[project] += share
		}
	}
	return estimates
}

// SubsystemInfo is the (product group, subsystem, default version) triple
// used when filling lifecycle transition fields.
type SubsystemInfo struct {
	ProductGroup   string
	Subsystem      string
	DefaultVersion string
}

const (
	productGroupDefault  = "DIGITAL_BSS"
	productGroupTailored = "TAILORED_NBSS"
	subsystemTailored    = "TAILORED_NBSS 2"
	subsystemDefault     = "NBSS_CORE"
)

// DefaultSubsystems is the built-in subsystem registry used when no
// mapping file is configured.
var DefaultSubsystems = []string{
	"NBSS_CORE", "NBSSPORTAL", "UDB", "CHM", "CRAB", "BFAM",
}

// ResolveSubsystem picks the subsystem triple for a source component.
// Tailored components get their own product line; everything else is
// matched against the registry on a 3-character prefix with NBSS_CORE
// as the default.
func ResolveSubsystem(component string, subsystems []string) SubsystemInfo {
	if strings.HasPrefix(strings.ToLower(component), tailoredPrefix) {
		return SubsystemInfo{
			ProductGroup:   productGroupTailored,
			Subsystem:      subsystemTailored,
			DefaultVersion: "1.0",
		}
	}

	info := SubsystemInfo{
		ProductGroup:   productGroupDefault,
		Subsystem:      subsystemDefault,
		DefaultVersion: "1.0",
	}
	if component == "" || len(subsystems) == 0 {
		log.Warn().Str("component", component).Msg("No component or subsystem registry, using default subsystem")
		return info
	}

	componentLower := strings.ToLower(component)
	for _, subsystem := range subsystems {
		if len(subsystem) < 3 || len(component) < 3 {
			continue
		}
		if strings.Contains(componentLower, strings.ToLower(subsystem[:3])) ||
			strings.Contains(strings.ToLower(subsystem), componentLower[:3]) {
			info.Subsystem = subsystem
			return info
		}
	}
	log.Warn().Str("component", component).Msg("No subsystem match, using default subsystem")
	return info
}
