package report

import (
	"context"
	"fmt"
	"strings"

	"clm-insight/internal/jira"

	"github.com/rs/zerolog/log"
)

const (
	estProjectKey       = "EST"
	improvementTypeName = "Improvement from CLM"

	linkRelatesTo  = "relates to"
	linkClmTo      = "links CLM to"
	linkRealizedIn = "is realized in"

	estBatchSize     = 20
	subtaskBatchSize = 10
	maxExpandRounds  = 3
)

// IssueFields is the field set every analysis query requests.
var IssueFields = []string{
	"project", "issuetype", "status", "timeoriginalestimate", "timespent",
	"created", "summary", "description", "components", "comment",
	"attachment", "issuelinks", "subtasks",
}

// Searcher is the slice of the Jira client the resolver needs.
type Searcher interface {
	SearchIssues(ctx context.Context, jql string, opts jira.SearchOptions) ([]jira.IssueDTO, error)
}

// RelatedIssues is the output of one graph traversal.
type RelatedIssues struct {
	EST            []jira.IssueDTO
	Improvements   []jira.IssueDTO
	Implementation []jira.IssueDTO

	// All is EST + Improvements + Implementation in first-seen order.
	All []jira.IssueDTO
}

// Resolver discovers the issue graph around a CLM seed set: estimation
// tickets, improvements, implementation tickets and their subtasks.
type Resolver struct {
	client Searcher
}

func NewResolver(client Searcher) *Resolver {
	return &Resolver{client: client}
}

// Resolve runs the worklist traversal. Each key enters the output at most
// once; an empty seed set returns empty sets without touching the network.
func (r *Resolver) Resolve(ctx context.Context, seeds []jira.IssueDTO) (*RelatedIssues, error) {
	out := &RelatedIssues{}
	if len(seeds) == 0 {
		return out, nil
	}

	seen := make(map[string]bool, len(seeds))
	clmKeys := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if seen[s.Key] {
			continue
		}
		seen[s.Key] = true
		clmKeys = append(clmKeys, s.Key)
	}

	// EST hop: estimation tickets related to the seed keys.
	for _, batch := range chunkKeys(clmKeys, estBatchSize) {
		jql := fmt.Sprintf("project = %s AND (%s)", estProjectKey, linkedClauses(batch, linkRelatesTo))
		for _, issue := range r.search(ctx, jql) {
			if issue.Fields.Project.Key != estProjectKey || seen[issue.Key] {
				continue
			}
			seen[issue.Key] = true
			out.EST = append(out.EST, issue)
		}
	}

	// Improvement hop.
	for _, batch := range chunkKeys(clmKeys, estBatchSize) {
		for _, issue := range r.search(ctx, linkedClauses(batch, linkClmTo)) {
			if !strings.EqualFold(issue.Fields.IssueType.Name, improvementTypeName) || seen[issue.Key] {
				continue
			}
			seen[issue.Key] = true
			out.Improvements = append(out.Improvements, issue)
		}
	}

	// Implementation hop.
	improvementKeys := issueKeys(out.Improvements)
	for _, batch := range chunkKeys(improvementKeys, estBatchSize) {
		for _, issue := range r.search(ctx, linkedClauses(batch, linkRealizedIn)) {
			if seen[issue.Key] {
				continue
			}
			seen[issue.Key] = true
			out.Implementation = append(out.Implementation, issue)
		}
	}

	// Subtask and epic-child expansion, bounded.
	worklist := append(append([]string{}, improvementKeys...), issueKeys(out.Implementation)...)
	for round := 0; round < maxExpandRounds && len(worklist) > 0; round++ {
		var discovered []string
		for _, batch := range chunkKeys(worklist, subtaskBatchSize) {
			for _, jql := range []string{parentClauses(batch), epicClauses(batch)} {
				for _, issue := range r.search(ctx, jql) {
					if seen[issue.Key] {
						continue
					}
					seen[issue.Key] = true
					out.Implementation = append(out.Implementation, issue)
					discovered = append(discovered, issue.Key)
				}
			}
		}
		log.Debug().Int("round", round+1).Int("discovered", len(discovered)).
			Msg("Subtask expansion round completed")
		worklist = discovered
	}

	out.All = append(append(append([]jira.IssueDTO{}, out.EST...), out.Improvements...), out.Implementation...)
	log.Info().
		Int("est", len(out.EST)).
		Int("improvements", len(out.Improvements)).
		Int("implementation", len(out.Implementation)).
		Msg("Issue graph resolved")
	return out, nil
}

// search logs and degrades to an empty result so a single failed batch
// never aborts the traversal.
func (r *Resolver) search(ctx context.Context, jql string) []jira.IssueDTO {
	issues, err := r.client.SearchIssues(ctx, jql, jira.SearchOptions{
		Fields:          IssueFields,
		ExpandChangelog: true,
	})
	if err != nil {
		log.Warn().Err(err).Str("jql", jql).Msg("Link lookup failed, continuing without batch")
		return nil
	}
	return issues
}

func issueKeys(issues []jira.IssueDTO) []string {
	keys := make([]string, 0, len(issues))
	for _, issue := range issues {
		keys = append(keys, issue.Key)
	}
	return keys
}

func chunkKeys(keys []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}

func linkedClauses(keys []string, linkType string) string {
	clauses := make([]string, 0, len(keys))
	for _, key := range keys {
		clauses = append(clauses, fmt.Sprintf("issue in linkedIssues(%q, %q)", key, linkType))
	}
	return strings.Join(clauses, " OR ")
}

func parentClauses(keys []string) string {
	clauses := make([]string, 0, len(keys))
	for _, key := range keys {
		clauses = append(clauses, fmt.Sprintf("parent = %q", key))
	}
	return strings.Join(clauses, " OR ")
}

func epicClauses(keys []string) string {
	clauses := make([]string, 0, len(keys))
	for _, key := range keys {
		clauses = append(clauses, fmt.Sprintf("%q = %q", "Epic Link", key))
	}
	return strings.Join(clauses, " OR ")
}
