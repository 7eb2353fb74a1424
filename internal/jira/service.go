// Package jira exposes the small slice of the Jira Cloud REST API the
// tools need: JQL issue search and single-issue lookup. Jira paginates
// with startAt/maxResults; results are translated to the shared
// page-number envelope so the pagination layer stays uniform.
package jira

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/atlascli/bitbucket-mcp/internal/apierror"
	"github.com/atlascli/bitbucket-mcp/internal/atlassian"
	"github.com/atlascli/bitbucket-mcp/internal/pagination"
)

// Service wraps the Jira Cloud v3 API.
type Service struct {
	client *atlassian.Client
	logger *slog.Logger
}

// NewService creates a Jira service on the shared Atlassian client.
func NewService(client *atlassian.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, logger: logger}
}

// Issue is the subset of a Jira issue we surface.
type Issue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueFields are the issue fields shown in listings and detail views.
type IssueFields struct {
	Summary     string `json:"summary"`
	Description any    `json:"description"`
	Status      struct {
		Name string `json:"name"`
	} `json:"status"`
	IssueType struct {
		Name string `json:"name"`
	} `json:"issuetype"`
	Priority struct {
		Name string `json:"name"`
	} `json:"priority"`
	Assignee struct {
		DisplayName string `json:"displayName"`
	} `json:"assignee"`
	Updated string `json:"updated"`
}

// SearchResult is the Jira search response.
type SearchResult struct {
	Total      int     `json:"total"`
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Issues     []Issue `json:"issues"`
}

// Envelope translates Jira's offset pagination to the shared page-number
// form: page N covers startAt [ (N-1)*maxResults, N*maxResults ).
func (r SearchResult) Envelope() pagination.Envelope {
	page := 1
	if r.MaxResults > 0 {
		page = r.StartAt/r.MaxResults + 1
	}
	total := r.Total
	return pagination.Envelope{
		Page:    page,
		PageLen: r.MaxResults,
		Total:   &total,
		Items:   len(r.Issues),
	}
}

// SearchIssues runs a JQL search.
func (s *Service) SearchIssues(ctx context.Context, jql string, startAt, maxResults int) (SearchResult, error) {
	var result SearchResult

	if jql == "" {
		err := errors.New("a JQL query is required")
		return result, apierror.Wrap(err, apierror.Context{
			EntityType: "issues", Operation: "search", Source: "jira.SearchIssues",
		})
	}
	info := map[string]any{"jql": jql}

	q := url.Values{}
	q.Set("jql", jql)
	if startAt > 0 {
		q.Set("startAt", strconv.Itoa(startAt))
	}
	if maxResults > 0 {
		q.Set("maxResults", strconv.Itoa(maxResults))
	}

	req, err := s.client.NewRequest(ctx, http.MethodGet, "/search", q, nil)
	if err != nil {
		return result, apierror.Wrap(err, apierror.Context{
			EntityType: "issues", Operation: "search", Source: "jira.SearchIssues", AdditionalInfo: info,
		})
	}
	if err := s.client.Do(req, &result); err != nil {
		return result, apierror.Wrap(err, apierror.Context{
			EntityType: "issues", Operation: "search", Source: "jira.SearchIssues", AdditionalInfo: info,
		})
	}
	return result, nil
}

// GetIssue fetches a single issue by key (e.g. "PROJ-123").
func (s *Service) GetIssue(ctx context.Context, key string) (Issue, error) {
	var issue Issue

	if key == "" {
		err := errors.New("an issue key is required")
		return issue, apierror.Wrap(err, apierror.Context{
			EntityType: "issue", Operation: "get", Source: "jira.GetIssue",
		})
	}
	info := map[string]any{"key": key}

	req, err := s.client.NewRequest(ctx, http.MethodGet, "/issue/"+url.PathEscape(key), nil, nil)
	if err != nil {
		return issue, apierror.Wrap(err, apierror.Context{
			EntityType: "issue", Operation: "get", Source: "jira.GetIssue", AdditionalInfo: info,
		})
	}
	if err := s.client.Do(req, &issue); err != nil {
		return issue, apierror.Wrap(err, apierror.Context{
			EntityType: "issue", Operation: "get", Source: "jira.GetIssue", AdditionalInfo: info,
		})
	}
	return issue, nil
}
