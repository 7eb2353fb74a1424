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

func lsPRsTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"bb_ls_prs",
		"List pull requests in a repository, filtered by state (default OPEN).",
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
				"state": {
					"type": "string",
					"enum": ["OPEN", "MERGED", "DECLINED", "SUPERSEDED"],
					"description": "Pull request state filter (default OPEN)"
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

func getPRTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"bb_get_pr",
		"Get details for one pull request.",
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
				"pr_id": {
					"type": "integer",
					"description": "Pull request ID"
				}
			},
			"required": ["repo", "pr_id"]
		}`),
	)
}

func createPRTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"bb_create_pr",
		"Open a pull request from a source branch.",
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
				"title": {
					"type": "string",
					"description": "Pull request title"
				},
				"description": {
					"type": "string",
					"description": "Pull request description (Markdown)"
				},
				"source_branch": {
					"type": "string",
					"description": "Branch to merge from"
				},
				"destination_branch": {
					"type": "string",
					"description": "Branch to merge into (default: the repository's main branch)"
				},
				"close_source_branch": {
					"type": "boolean",
					"description": "Close the source branch after merge"
				}
			},
			"required": ["repo", "title", "source_branch"]
		}`),
	)
}

func lsPRCommentsTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"bb_ls_pr_comments",
		"List the comments on a pull request.",
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
				"pr_id": {
					"type": "integer",
					"description": "Pull request ID"
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
			"required": ["repo", "pr_id"]
		}`),
	)
}

func addPRCommentTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"bb_add_pr_comment",
		"Post a Markdown comment on a pull request.",
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
				"pr_id": {
					"type": "integer",
					"description": "Pull request ID"
				},
				"text": {
					"type": "string",
					"description": "Comment body (Markdown)"
				}
			},
			"required": ["repo", "pr_id", "text"]
		}`),
	)
}

type lsPRsArgs struct {
	Workspace string `json:"workspace"`
	Repo      string `json:"repo"`
	State     string `json:"state"`
	pagingArgs
}

func (s *Server) handleLsPRs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "bb_ls_prs"
	start := time.Now()

	var args lsPRsArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Repo == "" {
		return mcp.NewToolResultError("repo is required"), nil
	}

	page, err := s.bitbucket.ListPullRequests(ctx, args.Workspace, args.Repo, bitbucket.PullRequestListOptions{
		ListOptions: args.options(),
		State:       args.State,
	})
	if err != nil {
		return s.finish(tool, start, "", err)
	}
	state := pagination.Extract(page.Envelope(), pagination.StylePage)
	return s.finish(tool, start, format.PullRequests(page.Values, state), nil)
}

type prArgs struct {
	Workspace string `json:"workspace"`
	Repo      string `json:"repo"`
	PRID      int    `json:"pr_id"`
}

func (a prArgs) validate() string {
	if a.Repo == "" {
		return "repo is required"
	}
	if a.PRID <= 0 {
		return "pr_id is required"
	}
	return ""
}

func (s *Server) handleGetPR(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "bb_get_pr"
	start := time.Now()

	var args prArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if msg := args.validate(); msg != "" {
		return mcp.NewToolResultError(msg), nil
	}

	pr, err := s.bitbucket.GetPullRequest(ctx, args.Workspace, args.Repo, args.PRID)
	if err != nil {
		return s.finish(tool, start, "", err)
	}
	return s.finish(tool, start, format.PullRequest(pr), nil)
}

type createPRArgs struct {
	Workspace         string `json:"workspace"`
	Repo              string `json:"repo"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	SourceBranch      string `json:"source_branch"`
	DestinationBranch string `json:"destination_branch"`
	CloseSourceBranch bool   `json:"close_source_branch"`
}

func (s *Server) handleCreatePR(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "bb_create_pr"
	start := time.Now()

	var args createPRArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Repo == "" {
		return mcp.NewToolResultError("repo is required"), nil
	}

	pr, err := s.bitbucket.CreatePullRequest(ctx, args.Workspace, args.Repo, bitbucket.CreatePullRequestInput{
		Title:             args.Title,
		Description:       args.Description,
		SourceBranch:      args.SourceBranch,
		DestinationBranch: args.DestinationBranch,
		CloseSourceBranch: args.CloseSourceBranch,
	})
	if err != nil {
		return s.finish(tool, start, "", err)
	}
	return s.finish(tool, start, format.PullRequest(pr), nil)
}

type lsPRCommentsArgs struct {
	prArgs
	pagingArgs
}

func (s *Server) handleLsPRComments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "bb_ls_pr_comments"
	start := time.Now()

	var args lsPRCommentsArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if msg := args.validate(); msg != "" {
		return mcp.NewToolResultError(msg), nil
	}

	page, err := s.bitbucket.ListPullRequestComments(ctx, args.Workspace, args.Repo, args.PRID, args.options())
	if err != nil {
		return s.finish(tool, start, "", err)
	}
	state := pagination.Extract(page.Envelope(), pagination.StylePage)
	return s.finish(tool, start, format.Comments(page.Values, state), nil)
}

type addPRCommentArgs struct {
	prArgs
	Text string `json:"text"`
}

func (s *Server) handleAddPRComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "bb_add_pr_comment"
	start := time.Now()

	var args addPRCommentArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if msg := args.validate(); msg != "" {
		return mcp.NewToolResultError(msg), nil
	}

	c, err := s.bitbucket.AddPullRequestComment(ctx, args.Workspace, args.Repo, args.PRID, args.Text)
	if err != nil {
		return s.finish(tool, start, "", err)
	}
	return s.finish(tool, start, format.Comment(c), nil)
}
