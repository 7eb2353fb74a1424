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

func commitHistoryTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"bb_commit_history",
		"List the commit history of a repository, optionally starting from a branch, tag, or commit.",
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
				},
				"revision": {
					"type": "string",
					"description": "Branch, tag, or commit hash to start from (default: the main branch)"
				},
				"page": {
					"type": "integer",
					"description": "1-based page number"
				},
				"pagelen": {
					"type": "integer",
					"description": "Page size (default 25)"
				}
			},
			"required": ["repo"]
		}`),
	)
}

func diffTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"bb_diff",
		"Get a unified diff: either between two refs (spec like \"main..feature\" or a commit hash) or for a pull request.",
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
				},
				"spec": {
					"type": "string",
					"description": "Diff spec, e.g. \"main..feature\" or a commit hash. Mutually exclusive with pr_id."
				},
				"pr_id": {
					"type": "integer",
					"description": "Pull request ID to diff. Mutually exclusive with spec."
				}
			},
			"required": ["repo"]
		}`),
	)
}

func searchTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"bb_search",
		"Search code across a workspace's repositories.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"workspace": {
					"type": "string",
					"description": "Workspace slug (optional)"
				},
				"query": {
					"type": "string",
					"description": "Search terms, optionally with modifiers like repo: or ext:"
				},
				"cursor": {
					"type": "string",
					"description": "Continuation token from a previous page"
				},
				"pagelen": {
					"type": "integer",
					"description": "Page size (default 25)"
				}
			},
			"required": ["query"]
		}`),
	)
}

func jiraLsIssuesTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"jira_ls_issues",
		"Search Jira issues with a JQL query.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"jql": {
					"type": "string",
					"description": "JQL query, e.g. project = PROJ AND status = \"In Progress\""
				},
				"start_at": {
					"type": "integer",
					"description": "0-based offset of the first result"
				},
				"max_results": {
					"type": "integer",
					"description": "Page size (default 50)"
				}
			},
			"required": ["jql"]
		}`),
	)
}

func jiraGetIssueTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"jira_get_issue",
		"Get details for one Jira issue by key.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"key": {
					"type": "string",
					"description": "Issue key, e.g. PROJ-123"
				}
			},
			"required": ["key"]
		}`),
	)
}

type commitHistoryArgs struct {
	Workspace string `json:"workspace"`
	Repo      string `json:"repo"`
	Revision  string `json:"revision"`
	pagingArgs
}

func (s *Server) handleCommitHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "bb_commit_history"
	start := time.Now()

	var args commitHistoryArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Repo == "" {
		return mcp.NewToolResultError("repo is required"), nil
	}

	page, err := s.bitbucket.CommitHistory(ctx, args.Workspace, args.Repo, args.Revision, args.options())
	if err != nil {
		return s.finish(tool, start, "", err)
	}
	state := pagination.Extract(page.Envelope(), pagination.StylePage)
	return s.finish(tool, start, format.Commits(page.Values, state), nil)
}

type diffArgs struct {
	Workspace string `json:"workspace"`
	Repo      string `json:"repo"`
	Spec      string `json:"spec"`
	PRID      int    `json:"pr_id"`
}

func (s *Server) handleDiff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "bb_diff"
	start := time.Now()

	var args diffArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Repo == "" {
		return mcp.NewToolResultError("repo is required"), nil
	}
	if (args.Spec == "") == (args.PRID <= 0) {
		return mcp.NewToolResultError("exactly one of spec or pr_id is required"), nil
	}

	var (
		title string
		diff  string
		err   error
	)
	if args.PRID > 0 {
		title = fmt.Sprintf("Diff for pull request #%d", args.PRID)
		diff, err = s.bitbucket.PullRequestDiff(ctx, args.Workspace, args.Repo, args.PRID)
	} else {
		title = fmt.Sprintf("Diff for `%s`", args.Spec)
		diff, err = s.bitbucket.Diff(ctx, args.Workspace, args.Repo, args.Spec)
	}
	if err != nil {
		return s.finish(tool, start, "", err)
	}
	return s.finish(tool, start, format.Diff(title, diff), nil)
}

type searchArgs struct {
	Workspace string `json:"workspace"`
	Query     string `json:"query"`
	Cursor    string `json:"cursor"`
	PageLen   int    `json:"pagelen"`
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "bb_search"
	start := time.Now()

	var args searchArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	page, err := s.bitbucket.SearchCode(ctx, args.Workspace, args.Query, bitbucket.SearchOptions{
		Cursor:  args.Cursor,
		PageLen: args.PageLen,
	})
	if err != nil {
		return s.finish(tool, start, "", err)
	}
	state := pagination.Extract(page.Envelope(), pagination.StyleCursor)
	return s.finish(tool, start, format.CodeSearchResults(args.Query, page.Values, state), nil)
}

type jiraLsIssuesArgs struct {
	JQL        string `json:"jql"`
	StartAt    int    `json:"start_at"`
	MaxResults int    `json:"max_results"`
}

func (s *Server) handleJiraLsIssues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "jira_ls_issues"
	start := time.Now()

	var args jiraLsIssuesArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.JQL == "" {
		return mcp.NewToolResultError("jql is required"), nil
	}

	res, err := s.jira.SearchIssues(ctx, args.JQL, args.StartAt, args.MaxResults)
	if err != nil {
		return s.finish(tool, start, "", err)
	}
	state := pagination.Extract(res.Envelope(), pagination.StylePage)
	return s.finish(tool, start, format.Issues(args.JQL, res, state), nil)
}

type jiraGetIssueArgs struct {
	Key string `json:"key"`
}

func (s *Server) handleJiraGetIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "jira_get_issue"
	start := time.Now()

	var args jiraGetIssueArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Key == "" {
		return mcp.NewToolResultError("key is required"), nil
	}

	issue, err := s.jira.GetIssue(ctx, args.Key)
	if err != nil {
		return s.finish(tool, start, "", err)
	}
	return s.finish(tool, start, format.Issue(issue), nil)
}
