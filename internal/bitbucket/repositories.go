package bitbucket

import (
	"context"
	"net/http"
	"net/url"
)

// RepositoryListOptions extends the common paging options with an optional
// Bitbucket query expression (the q parameter) and sort field.
type RepositoryListOptions struct {
	ListOptions
	Query string // e.g. `name ~ "api"`
	Sort  string // e.g. "-updated_on"
}

// ListRepositories lists repositories in a workspace. An empty workspace
// falls back to the cached default.
func (s *Service) ListRepositories(ctx context.Context, workspace string, opts RepositoryListOptions) (Page[Repository], error) {
	var page Page[Repository]

	workspace, err := s.ResolveWorkspace(ctx, workspace)
	if err != nil {
		return page, err
	}
	info := map[string]any{"workspace": workspace}

	q := opts.query()
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}

	req, err := s.client.NewRequest(ctx, http.MethodGet, "/repositories/"+url.PathEscape(workspace), q, nil)
	if err != nil {
		return page, wrap(err, "repositories", "list", "bitbucket.ListRepositories", info)
	}
	if err := s.client.Do(req, &page); err != nil {
		return page, wrap(err, "repositories", "list", "bitbucket.ListRepositories", info)
	}
	return page, nil
}

// GetRepository fetches a single repository by slug.
func (s *Service) GetRepository(ctx context.Context, workspace, repo string) (Repository, error) {
	var r Repository

	workspace, err := s.ResolveWorkspace(ctx, workspace)
	if err != nil {
		return r, err
	}
	info := map[string]any{"workspace": workspace, "repo": repo}

	path := "/repositories/" + url.PathEscape(workspace) + "/" + url.PathEscape(repo)
	req, err := s.client.NewRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return r, wrap(err, "repository", "get", "bitbucket.GetRepository", info)
	}
	if err := s.client.Do(req, &r); err != nil {
		return r, wrap(err, "repository", "get", "bitbucket.GetRepository", info)
	}
	return r, nil
}
