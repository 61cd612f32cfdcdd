package jira

import (
	"context"
	"time"
)

// Client is the interface for interacting with Jira.
type Client interface {
	// CheckConnection runs the liveness and auth probes. Failures are
	// reported, not fatal; callers decide whether to continue.
	CheckConnection(ctx context.Context) error

	// SearchIssues runs a JQL query and pages through the full result set.
	SearchIssues(ctx context.Context, jql string, opts SearchOptions) ([]IssueDTO, error)

	// GetIssue fetches a single issue with the given fields and expand list.
	GetIssue(ctx context.Context, key string, opts SearchOptions) (*IssueDTO, error)

	// GetFilterJQL resolves a saved filter id to its JQL text.
	GetFilterJQL(ctx context.Context, filterID string) (string, error)

	GetTransitions(ctx context.Context, key string) ([]TransitionDTO, error)
	PostTransition(ctx context.Context, key string, transitionID string, fields map[string]interface{}) error

	CreateIssue(ctx context.Context, fields map[string]interface{}) (string, error)
	CreateLink(ctx context.Context, linkType, inwardKey, outwardKey string) error

	// GetCreateMeta fetches create-metadata for a project/issue-type pair.
	// Results are cached for the lifetime of the client.
	GetCreateMeta(ctx context.Context, projectKey, issueTypeName string) (*CreateMeta, error)

	// GetFieldOptions lists the allowed values of a select custom field.
	GetFieldOptions(ctx context.Context, projectKey, issueTypeName, fieldID string) ([]FieldOption, error)

	// ListFields returns the global field registry, the fallback source
	// for resolving custom-field ids by display name.
	ListFields(ctx context.Context) ([]FieldDTO, error)
}

// SearchOptions narrows what the server returns per issue.
type SearchOptions struct {
	Fields          []string
	ExpandChangelog bool
}

// Config holds the authentication and connection settings for Jira.
type Config struct {
	BaseURL string

	// Personal Access Token (Bearer auth).
	Token string

	// Request timeout; defaults to 30s when zero.
	Timeout time.Duration
}

// NewClient creates a new Jira client based on the provided configuration.
func NewClient(cfg Config) Client {
	return newHTTPClient(cfg)
}
