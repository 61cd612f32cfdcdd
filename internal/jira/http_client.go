package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const searchPageSize = 100

type httpClient struct {
	cfg        Config
	httpClient *http.Client

	// Probe client: short timeout, redirects surfaced instead of followed.
	probeClient *http.Client

	// Create-metadata cache, keyed by "<project>/<issuetype>".
	metaCache map[string]*CreateMeta
	metaMutex sync.Mutex
}

func newHTTPClient(cfg Config) *httpClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &httpClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		probeClient: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		metaCache: make(map[string]*CreateMeta),
	}
}

// StatusError is a non-2xx response from Jira.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jira returned status %d: %s", e.Code, e.Body)
}

// IsClientError reports a 4xx response, which retrying will not fix.
func IsClientError(err error) bool {
	if se, ok := err.(*StatusError); ok {
		return se.Code >= 400 && se.Code < 500
	}
	return false
}

func (c *httpClient) authenticateRequest(req *http.Request) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	req.Header.Set("Content-Type", "application/json")
}

// CheckConnection probes server reachability and token validity.
// A redirect on the base URL usually means a VPN captive portal.
func (c *httpClient) CheckConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.probeClient.Do(req)
	if err != nil {
		return fmt.Errorf("jira is unreachable, check network and VPN: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return fmt.Errorf("jira redirected to %q, VPN connection is likely required", resp.Header.Get("Location"))
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/rest/api/2/myself", nil)
	if err != nil {
		return err
	}
	c.authenticateRequest(req)
	resp, err = c.probeClient.Do(req)
	if err != nil {
		return fmt.Errorf("jira auth probe failed: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jira rejected the token with status %d, check JIRA_TOKEN", resp.StatusCode)
	}
	return nil
}

// doJSON performs one request with retry on network errors and 5xx.
// 4xx responses are permanent and returned as *StatusError.
func (c *httpClient) doJSON(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	reqURL := c.cfg.BaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	operation := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		c.authenticateRequest(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			statusErr := &StatusError{Code: resp.StatusCode, Body: string(msg)}
			if resp.StatusCode >= 500 {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode jira response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	return backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("wait", wait).Str("path", path).Msg("Retrying Jira request")
	})
}

func (c *httpClient) SearchIssues(ctx context.Context, jql string, opts SearchOptions) ([]IssueDTO, error) {
	var all []IssueDTO
	startAt := 0
	for {
		body := map[string]interface{}{
			"jql":        jql,
			"startAt":    startAt,
			"maxResults": searchPageSize,
		}
		if len(opts.Fields) > 0 {
			body["fields"] = opts.Fields
		}
		if opts.ExpandChangelog {
			body["expand"] = []string{"changelog"}
		}

		var page SearchResponse
		err := c.doJSON(ctx, http.MethodPost, "/rest/api/2/search", nil, body, &page)
		if err != nil {
			if IsClientError(err) {
				// A rejected query means the JQL or fields are wrong.
				// Surface an empty result rather than aborting the run.
				log.Error().Err(err).Str("jql", jql).Msg("Jira rejected the search query")
				return []IssueDTO{}, nil
			}
			return nil, err
		}

		all = append(all, page.Issues...)
		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
	}
	log.Debug().Int("count", len(all)).Msg("Jira search completed")
	return all, nil
}

func (c *httpClient) GetIssue(ctx context.Context, key string, opts SearchOptions) (*IssueDTO, error) {
	query := url.Values{}
	if len(opts.Fields) > 0 {
		query.Set("fields", strings.Join(opts.Fields, ","))
	}
	if opts.ExpandChangelog {
		query.Set("expand", "changelog")
	}

	var issue IssueDTO
	if err := c.doJSON(ctx, http.MethodGet, "/rest/api/2/issue/"+key, query, nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *httpClient) GetFilterJQL(ctx context.Context, filterID string) (string, error) {
	var filter struct {
		JQL string `json:"jql"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/rest/api/2/filter/"+filterID, nil, nil, &filter); err != nil {
		return "", err
	}
	if filter.JQL == "" {
		return "", fmt.Errorf("filter %s has no JQL", filterID)
	}
	return filter.JQL, nil
}

func (c *httpClient) GetTransitions(ctx context.Context, key string) ([]TransitionDTO, error) {
	var resp struct {
		Transitions []TransitionDTO `json:"transitions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/rest/api/2/issue/"+key+"/transitions", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Transitions, nil
}

func (c *httpClient) PostTransition(ctx context.Context, key string, transitionID string, fields map[string]interface{}) error {
	body := map[string]interface{}{
		"transition": map[string]string{"id": transitionID},
	}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	return c.doJSON(ctx, http.MethodPost, "/rest/api/2/issue/"+key+"/transitions", nil, body, nil)
}

func (c *httpClient) CreateIssue(ctx context.Context, fields map[string]interface{}) (string, error) {
	var created struct {
		Key string `json:"key"`
	}
	body := map[string]interface{}{"fields": fields}
	if err := c.doJSON(ctx, http.MethodPost, "/rest/api/2/issue", nil, body, &created); err != nil {
		return "", err
	}
	return created.Key, nil
}

func (c *httpClient) CreateLink(ctx context.Context, linkType, inwardKey, outwardKey string) error {
	body := map[string]interface{}{
		"type":         map[string]string{"name": linkType},
		"inwardIssue":  map[string]string{"key": inwardKey},
		"outwardIssue": map[string]string{"key": outwardKey},
	}
	return c.doJSON(ctx, http.MethodPost, "/rest/api/2/issueLink", nil, body, nil)
}

func (c *httpClient) GetCreateMeta(ctx context.Context, projectKey, issueTypeName string) (*CreateMeta, error) {
	cacheKey := projectKey + "/" + issueTypeName
	c.metaMutex.Lock()
	if meta, ok := c.metaCache[cacheKey]; ok {
		c.metaMutex.Unlock()
		return meta, nil
	}
	c.metaMutex.Unlock()

	query := url.Values{}
	query.Set("projectKeys", projectKey)
	query.Set("issuetypeNames", issueTypeName)
	query.Set("expand", "projects.issuetypes.fields")

	var resp struct {
		Projects []struct {
			Key        string `json:"key"`
			IssueTypes []struct {
				Name   string               `json:"name"`
				Fields map[string]FieldMeta `json:"fields"`
			} `json:"issuetypes"`
		} `json:"projects"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/rest/api/2/issue/createmeta", query, nil, &resp); err != nil {
		return nil, err
	}

	for _, p := range resp.Projects {
		if p.Key != projectKey {
			continue
		}
		for _, it := range p.IssueTypes {
			if it.Name != issueTypeName {
				continue
			}
			meta := &CreateMeta{Fields: it.Fields}
			c.metaMutex.Lock()
			c.metaCache[cacheKey] = meta
			c.metaMutex.Unlock()
			log.Debug().Str("project", projectKey).Str("type", issueTypeName).
				Int("fields", len(meta.Fields)).Msg("Cached create metadata")
			return meta, nil
		}
	}
	return nil, fmt.Errorf("no create metadata for %s/%s", projectKey, issueTypeName)
}

func (c *httpClient) GetFieldOptions(ctx context.Context, projectKey, issueTypeName, fieldID string) ([]FieldOption, error) {
	meta, err := c.GetCreateMeta(ctx, projectKey, issueTypeName)
	if err != nil {
		return nil, err
	}
	field, ok := meta.Fields[fieldID]
	if !ok {
		return nil, fmt.Errorf("field %s not present in create metadata for %s/%s", fieldID, projectKey, issueTypeName)
	}
	return field.AllowedValues, nil
}

func (c *httpClient) ListFields(ctx context.Context) ([]FieldDTO, error) {
	var fields []FieldDTO
	if err := c.doJSON(ctx, http.MethodGet, "/rest/api/2/field", nil, nil, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
