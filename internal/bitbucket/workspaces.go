package bitbucket

import (
	"context"
	"net/http"
	"net/url"
)

// ListWorkspaces lists the workspaces the authenticated user can access.
func (s *Service) ListWorkspaces(ctx context.Context, opts ListOptions) (Page[Workspace], error) {
	var page Page[Workspace]
	req, err := s.client.NewRequest(ctx, http.MethodGet, "/workspaces", opts.query(), nil)
	if err != nil {
		return page, wrap(err, "workspaces", "list", "bitbucket.ListWorkspaces", nil)
	}
	if err := s.client.Do(req, &page); err != nil {
		return page, wrap(err, "workspaces", "list", "bitbucket.ListWorkspaces", nil)
	}
	return page, nil
}

// GetWorkspace fetches a single workspace by slug.
func (s *Service) GetWorkspace(ctx context.Context, slug string) (Workspace, error) {
	var ws Workspace
	if slug == "" {
		resolved, err := s.ResolveWorkspace(ctx, "")
		if err != nil {
			return ws, err
		}
		slug = resolved
	}

	info := map[string]any{"workspace": slug}
	req, err := s.client.NewRequest(ctx, http.MethodGet, "/workspaces/"+url.PathEscape(slug), nil, nil)
	if err != nil {
		return ws, wrap(err, "workspace", "get", "bitbucket.GetWorkspace", info)
	}
	if err := s.client.Do(req, &ws); err != nil {
		return ws, wrap(err, "workspace", "get", "bitbucket.GetWorkspace", info)
	}
	return ws, nil
}
