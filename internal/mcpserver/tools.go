package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/atlascli/bitbucket-mcp/internal/bitbucket"
	"github.com/atlascli/bitbucket-mcp/internal/format"
	"github.com/atlascli/bitbucket-mcp/internal/pagination"
)

// --- Workspace tools ---

func lsWorkspacesTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"bb_ls_workspaces",
		"List the Bitbucket workspaces accessible with the configured credentials.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"page": {
					"type": "integer",
					"description": "1-based page number"
				},
				"pagelen": {
					"type": "integer",
					"description": "Page size (default 25)"
				}
			}
		}`),
	)
}

func getWorkspaceTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"bb_get_workspace",
		"Get details for one Bitbucket workspace. Defaults to the configured or first accessible workspace.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"workspace": {
					"type": "string",
					"description": "Workspace slug (optional, defaults to the resolved default workspace)"
				}
			}
		}`),
	)
}

// pagingArgs are shared by every page-number list tool.
type pagingArgs struct {
	Page    int `json:"page"`
	PageLen int `json:"pagelen"`
}

func (p pagingArgs) options() bitbucket.ListOptions {
	return bitbucket.ListOptions{Page: p.Page, PageLen: p.PageLen}
}

func (s *Server) handleLsWorkspaces(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "bb_ls_workspaces"
	start := time.Now()

	var args pagingArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	page, err := s.bitbucket.ListWorkspaces(ctx, args.options())
	if err != nil {
		return s.finish(tool, start, "", err)
	}
	state := pagination.Extract(page.Envelope(), pagination.StylePage)
	return s.finish(tool, start, format.Workspaces(page.Values, state), nil)
}

type getWorkspaceArgs struct {
	Workspace string `json:"workspace"`
}

func (s *Server) handleGetWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "bb_get_workspace"
	start := time.Now()

	var args getWorkspaceArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	ws, err := s.bitbucket.GetWorkspace(ctx, args.Workspace)
	if err != nil {
		return s.finish(tool, start, "", err)
	}
	return s.finish(tool, start, format.Workspace(ws), nil)
}

// --- Repository tools ---

func lsReposTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"bb_ls_repos",
		"List repositories in a Bitbucket workspace, optionally filtered by a query expression.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"workspace": {
					"type": "string",
					"description": "Workspace slug (optional, defaults to the resolved default workspace)"
				},
				"query": {
					"type": "string",
					"description": "Bitbucket query expression, e.g. name ~ \"api\""
				},
				"sort": {
					"type": "string",
					"description": "Sort field, e.g. -updated_on"
				},
				"page": {
					"type": "integer",
					"description": "1-based page number"
				},
				"pagelen": {
					"type": "integer",
					"description": "Page size (default 25)"
				}
			}
		}`),
	)
}

func getRepoTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"bb_get_repo",
		"Get details for one repository.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"workspace": {
					"type": "string",
					"description": "Workspace slug (optional)"
				},
				"repo": {
					"type": "string",
					"description": "Repository slug"
				}
			},
			"required": ["repo"]
		}`),
	)
}

type lsReposArgs struct {
	Workspace string `json:"workspace"`
	Query     string `json:"query"`
	Sort      string `json:"sort"`
	pagingArgs
}

func (s *Server) handleLsRepos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "bb_ls_repos"
	start := time.Now()

	var args lsReposArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	page, err := s.bitbucket.ListRepositories(ctx, args.Workspace, bitbucket.RepositoryListOptions{
		ListOptions: args.options(),
		Query:       args.Query,
		Sort:        args.Sort,
	})
	if err != nil {
		return s.finish(tool, start, "", err)
	}
	state := pagination.Extract(page.Envelope(), pagination.StylePage)
	return s.finish(tool, start, format.Repositories(page.Values, state), nil)
}

type getRepoArgs struct {
	Workspace string `json:"workspace"`
	Repo      string `json:"repo"`
}

func (s *Server) handleGetRepo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "bb_get_repo"
	start := time.Now()

	var args getRepoArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Repo == "" {
		return mcp.NewToolResultError("repo is required"), nil
	}

	repo, err := s.bitbucket.GetRepository(ctx, args.Workspace, args.Repo)
	if err != nil {
		return s.finish(tool, start, "", err)
	}
	return s.finish(tool, start, format.Repository(repo), nil)
}
