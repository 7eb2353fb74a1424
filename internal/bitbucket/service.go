// Package bitbucket exposes the Bitbucket Cloud REST resources consumed by
// the MCP tools and the CLI: workspaces, repositories, pull requests,
// commits, diffs, and code search. Every operation is a thin pipeline:
// validate input, apply defaults, call the REST endpoint, return typed
// results; failures come back as classified apierror envelopes.
package bitbucket

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/atlascli/bitbucket-mcp/internal/apierror"
	"github.com/atlascli/bitbucket-mcp/internal/atlassian"
)

// Service wraps the Bitbucket Cloud v2 API.
type Service struct {
	client *atlassian.Client
	cache  *WorkspaceCache
	logger *slog.Logger
}

// NewService creates a Service. The cache carries the configured default
// workspace, if any, and memoizes workspace resolution for the process
// lifetime.
func NewService(client *atlassian.Client, cache *WorkspaceCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, cache: cache, logger: logger}
}

// ListOptions control page-number pagination for list endpoints. Zero
// values mean "server default".
type ListOptions struct {
	Page    int // 1-based page number
	PageLen int // page size
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageLen > 0 {
		q.Set("pagelen", strconv.Itoa(o.PageLen))
	}
	return q
}

// ResolveWorkspace returns the workspace to operate on: the explicit slug
// when given, otherwise the cached default.
func (s *Service) ResolveWorkspace(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return s.cache.DefaultSlug(ctx, s)
}

// wrap builds the classified envelope for a failed operation.
func wrap(err error, entity, operation, source string, info map[string]any) *apierror.Error {
	return apierror.Wrap(err, apierror.Context{
		EntityType:     entity,
		Operation:      operation,
		Source:         source,
		AdditionalInfo: info,
	})
}
