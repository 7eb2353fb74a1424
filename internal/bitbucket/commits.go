package bitbucket

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

// CommitHistory lists the commits of a repository, optionally starting from
// a revision (branch, tag, or hash).
func (s *Service) CommitHistory(ctx context.Context, workspace, repo, revision string, opts ListOptions) (Page[Commit], error) {
	var page Page[Commit]

	workspace, err := s.ResolveWorkspace(ctx, workspace)
	if err != nil {
		return page, err
	}
	info := map[string]any{"workspace": workspace, "repo": repo, "revision": revision}

	path := "/repositories/" + url.PathEscape(workspace) + "/" + url.PathEscape(repo) + "/commits"
	if revision != "" {
		path += "/" + url.PathEscape(revision)
	}

	req, err := s.client.NewRequest(ctx, http.MethodGet, path, opts.query(), nil)
	if err != nil {
		return page, wrap(err, "commits", "list", "bitbucket.CommitHistory", info)
	}
	if err := s.client.Do(req, &page); err != nil {
		return page, wrap(err, "commits", "list", "bitbucket.CommitHistory", info)
	}
	return page, nil
}

// Diff returns the raw unified diff between two refs, e.g. "main..feature"
// or a single commit hash.
func (s *Service) Diff(ctx context.Context, workspace, repo, spec string) (string, error) {
	if spec == "" {
		err := errors.New("diff spec is required")
		return "", wrap(err, "diff", "get", "bitbucket.Diff", nil)
	}

	workspace, err := s.ResolveWorkspace(ctx, workspace)
	if err != nil {
		return "", err
	}
	info := map[string]any{"workspace": workspace, "repo": repo, "spec": spec}

	path := "/repositories/" + url.PathEscape(workspace) + "/" + url.PathEscape(repo) + "/diff/" + url.PathEscape(spec)
	req, err := s.client.NewRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return "", wrap(err, "diff", "get", "bitbucket.Diff", info)
	}
	text, err := s.client.DoText(req)
	if err != nil {
		return "", wrap(err, "diff", "get", "bitbucket.Diff", info)
	}
	return text, nil
}

// PullRequestDiff returns the raw unified diff of a pull request.
func (s *Service) PullRequestDiff(ctx context.Context, workspace, repo string, id int) (string, error) {
	workspace, err := s.ResolveWorkspace(ctx, workspace)
	if err != nil {
		return "", err
	}
	info := map[string]any{"workspace": workspace, "repo": repo, "pr": id}

	path := prPath(workspace, repo) + "/" + strconv.Itoa(id) + "/diff"
	req, err := s.client.NewRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return "", wrap(err, "pull request diff", "get", "bitbucket.PullRequestDiff", info)
	}
	text, err := s.client.DoText(req)
	if err != nil {
		return "", wrap(err, "pull request diff", "get", "bitbucket.PullRequestDiff", info)
	}
	return text, nil
}
