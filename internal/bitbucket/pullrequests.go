package bitbucket

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

// PullRequestListOptions extends the paging options with a state filter.
type PullRequestListOptions struct {
	ListOptions
	State string // OPEN, MERGED, DECLINED, SUPERSEDED; empty means OPEN
}

// CreatePullRequestInput holds the fields for opening a pull request.
type CreatePullRequestInput struct {
	Title             string
	Description       string
	SourceBranch      string
	DestinationBranch string // empty means the repository's main branch
	CloseSourceBranch bool
}

func prPath(workspace, repo string) string {
	return "/repositories/" + url.PathEscape(workspace) + "/" + url.PathEscape(repo) + "/pullrequests"
}

// ListPullRequests lists pull requests for a repository, filtered by state.
func (s *Service) ListPullRequests(ctx context.Context, workspace, repo string, opts PullRequestListOptions) (Page[PullRequest], error) {
	var page Page[PullRequest]

	workspace, err := s.ResolveWorkspace(ctx, workspace)
	if err != nil {
		return page, err
	}
	info := map[string]any{"workspace": workspace, "repo": repo}

	q := opts.query()
	state := opts.State
	if state == "" {
		state = "OPEN"
	}
	q.Set("state", state)

	req, err := s.client.NewRequest(ctx, http.MethodGet, prPath(workspace, repo), q, nil)
	if err != nil {
		return page, wrap(err, "pull requests", "list", "bitbucket.ListPullRequests", info)
	}
	if err := s.client.Do(req, &page); err != nil {
		return page, wrap(err, "pull requests", "list", "bitbucket.ListPullRequests", info)
	}
	return page, nil
}

// GetPullRequest fetches a single pull request by ID.
func (s *Service) GetPullRequest(ctx context.Context, workspace, repo string, id int) (PullRequest, error) {
	var pr PullRequest

	workspace, err := s.ResolveWorkspace(ctx, workspace)
	if err != nil {
		return pr, err
	}
	info := map[string]any{"workspace": workspace, "repo": repo, "pr": id}

	path := prPath(workspace, repo) + "/" + strconv.Itoa(id)
	req, err := s.client.NewRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return pr, wrap(err, "pull request", "get", "bitbucket.GetPullRequest", info)
	}
	if err := s.client.Do(req, &pr); err != nil {
		return pr, wrap(err, "pull request", "get", "bitbucket.GetPullRequest", info)
	}
	return pr, nil
}

// CreatePullRequest opens a pull request.
func (s *Service) CreatePullRequest(ctx context.Context, workspace, repo string, input CreatePullRequestInput) (PullRequest, error) {
	var pr PullRequest

	if input.Title == "" || input.SourceBranch == "" {
		err := errors.New("title and source branch are required")
		return pr, wrap(err, "pull request", "create", "bitbucket.CreatePullRequest", nil)
	}

	workspace, err := s.ResolveWorkspace(ctx, workspace)
	if err != nil {
		return pr, err
	}
	info := map[string]any{"workspace": workspace, "repo": repo}

	body := map[string]any{
		"title":  input.Title,
		"source": map[string]any{"branch": map[string]string{"name": input.SourceBranch}},
	}
	if input.Description != "" {
		body["description"] = input.Description
	}
	if input.DestinationBranch != "" {
		body["destination"] = map[string]any{"branch": map[string]string{"name": input.DestinationBranch}}
	}
	if input.CloseSourceBranch {
		body["close_source_branch"] = true
	}

	req, err := s.client.NewRequest(ctx, http.MethodPost, prPath(workspace, repo), nil, body)
	if err != nil {
		return pr, wrap(err, "pull request", "create", "bitbucket.CreatePullRequest", info)
	}
	if err := s.client.Do(req, &pr); err != nil {
		return pr, wrap(err, "pull request", "create", "bitbucket.CreatePullRequest", info)
	}
	return pr, nil
}

// ListPullRequestComments lists the comments on a pull request.
func (s *Service) ListPullRequestComments(ctx context.Context, workspace, repo string, id int, opts ListOptions) (Page[Comment], error) {
	var page Page[Comment]

	workspace, err := s.ResolveWorkspace(ctx, workspace)
	if err != nil {
		return page, err
	}
	info := map[string]any{"workspace": workspace, "repo": repo, "pr": id}

	path := prPath(workspace, repo) + "/" + strconv.Itoa(id) + "/comments"
	req, err := s.client.NewRequest(ctx, http.MethodGet, path, opts.query(), nil)
	if err != nil {
		return page, wrap(err, "pull request comments", "list", "bitbucket.ListPullRequestComments", info)
	}
	if err := s.client.Do(req, &page); err != nil {
		return page, wrap(err, "pull request comments", "list", "bitbucket.ListPullRequestComments", info)
	}
	return page, nil
}

// AddPullRequestComment posts a markdown comment on a pull request.
func (s *Service) AddPullRequestComment(ctx context.Context, workspace, repo string, id int, text string) (Comment, error) {
	var c Comment

	if text == "" {
		err := errors.New("comment text is required")
		return c, wrap(err, "pull request comment", "add", "bitbucket.AddPullRequestComment", nil)
	}

	workspace, err := s.ResolveWorkspace(ctx, workspace)
	if err != nil {
		return c, err
	}
	info := map[string]any{"workspace": workspace, "repo": repo, "pr": id}

	body := map[string]any{"content": map[string]string{"raw": text}}
	path := prPath(workspace, repo) + "/" + strconv.Itoa(id) + "/comments"
	req, err := s.client.NewRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return c, wrap(err, "pull request comment", "add", "bitbucket.AddPullRequestComment", info)
	}
	if err := s.client.Do(req, &c); err != nil {
		return c, wrap(err, "pull request comment", "add", "bitbucket.AddPullRequestComment", info)
	}
	return c, nil
}
