package bitbucket

import (
	"context"
	"errors"
	"sync"
)

var errNoWorkspaces = errors.New("no workspaces are accessible with the configured credentials")

// WorkspaceCache memoizes the resolved default workspace slug and the
// fetched workspace list for the lifetime of the process. It is an explicit
// object handed to whoever needs workspace resolution rather than a
// package-level singleton, so tests can reset it.
type WorkspaceCache struct {
	mu         sync.Mutex
	configured string // from config; takes precedence when set

	slug string
	list []Workspace
}

// NewWorkspaceCache creates a cache. configured may be empty, in which case
// the default workspace is the first one the API returns.
func NewWorkspaceCache(configured string) *WorkspaceCache {
	return &WorkspaceCache{configured: configured}
}

// DefaultSlug resolves the default workspace, fetching the workspace list
// at most once.
func (c *WorkspaceCache) DefaultSlug(ctx context.Context, svc *Service) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.slug != "" {
		return c.slug, nil
	}
	if c.configured != "" {
		c.slug = c.configured
		return c.slug, nil
	}

	list, err := c.workspacesLocked(ctx, svc)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", wrap(errNoWorkspaces, "workspace", "resolve default", "bitbucket.WorkspaceCache", nil)
	}
	c.slug = list[0].Slug
	return c.slug, nil
}

// Workspaces returns the cached workspace list, fetching it on first use.
func (c *WorkspaceCache) Workspaces(ctx context.Context, svc *Service) ([]Workspace, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workspacesLocked(ctx, svc)
}

func (c *WorkspaceCache) workspacesLocked(ctx context.Context, svc *Service) ([]Workspace, error) {
	if c.list != nil {
		return c.list, nil
	}
	page, err := svc.ListWorkspaces(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	c.list = page.Values
	return c.list, nil
}

// Reset clears both slots. Intended for test isolation.
func (c *WorkspaceCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slug = ""
	c.list = nil
}
