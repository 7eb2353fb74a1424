package bitbucket

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

// SearchOptions control cursor pagination for the code search endpoint.
type SearchOptions struct {
	Cursor  string // continuation token from a previous page's state
	PageLen int
}

// SearchCode runs a workspace-scoped code search. Unlike the list
// endpoints, continuation uses the cursor extracted from the previous
// response rather than a page number computed by the caller.
func (s *Service) SearchCode(ctx context.Context, workspace, query string, opts SearchOptions) (Page[CodeSearchResult], error) {
	var page Page[CodeSearchResult]

	if query == "" {
		err := errors.New("search query is required")
		return page, wrap(err, "code search results", "search", "bitbucket.SearchCode", nil)
	}

	workspace, err := s.ResolveWorkspace(ctx, workspace)
	if err != nil {
		return page, err
	}
	info := map[string]any{"workspace": workspace, "query": query}

	q := url.Values{}
	q.Set("search_query", query)
	if opts.Cursor != "" {
		q.Set("page", opts.Cursor)
	}
	if opts.PageLen > 0 {
		q.Set("pagelen", strconv.Itoa(opts.PageLen))
	}

	path := "/workspaces/" + url.PathEscape(workspace) + "/search/code"
	req, err := s.client.NewRequest(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return page, wrap(err, "code search results", "search", "bitbucket.SearchCode", info)
	}
	if err := s.client.Do(req, &page); err != nil {
		return page, wrap(err, "code search results", "search", "bitbucket.SearchCode", info)
	}
	return page, nil
}
