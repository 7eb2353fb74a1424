// Package mcpserver implements an MCP (Model Context Protocol) server that
// exposes Bitbucket and Jira REST resources as typed tools over stdio
// JSON-RPC. Tool output is Markdown text; failures carry the classified
// error envelope's message.
package mcpserver

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/atlascli/bitbucket-mcp/internal/apierror"
	"github.com/atlascli/bitbucket-mcp/internal/auditlog"
	"github.com/atlascli/bitbucket-mcp/internal/bitbucket"
	"github.com/atlascli/bitbucket-mcp/internal/config"
	"github.com/atlascli/bitbucket-mcp/internal/jira"
)

// Server holds the services behind the MCP tools. jira and audit may be
// nil; the Jira tools are only registered when the service is present.
type Server struct {
	bitbucket *bitbucket.Service
	jira      *jira.Service
	audit     *auditlog.DB
	logger    *slog.Logger
}

// New creates a Server.
func New(bb *bitbucket.Service, jr *jira.Service, audit *auditlog.DB, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{bitbucket: bb, jira: jr, audit: audit, logger: logger}
}

// Run starts the MCP stdio server. It blocks until the context is
// cancelled or stdin is closed.
func (s *Server) Run(ctx context.Context) error {
	mcpServer := server.NewMCPServer(
		"bitbucket-mcp",
		config.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	tools := []server.ServerTool{
		{Tool: lsWorkspacesTool(), Handler: s.handleLsWorkspaces},
		{Tool: getWorkspaceTool(), Handler: s.handleGetWorkspace},
		{Tool: lsReposTool(), Handler: s.handleLsRepos},
		{Tool: getRepoTool(), Handler: s.handleGetRepo},
		{Tool: lsPRsTool(), Handler: s.handleLsPRs},
		{Tool: getPRTool(), Handler: s.handleGetPR},
		{Tool: createPRTool(), Handler: s.handleCreatePR},
		{Tool: lsPRCommentsTool(), Handler: s.handleLsPRComments},
		{Tool: addPRCommentTool(), Handler: s.handleAddPRComment},
		{Tool: commitHistoryTool(), Handler: s.handleCommitHistory},
		{Tool: diffTool(), Handler: s.handleDiff},
		{Tool: searchTool(), Handler: s.handleSearch},
	}
	if s.jira != nil {
		tools = append(tools,
			server.ServerTool{Tool: jiraLsIssuesTool(), Handler: s.handleJiraLsIssues},
			server.ServerTool{Tool: jiraGetIssueTool(), Handler: s.handleJiraGetIssue},
		)
	}
	mcpServer.AddTools(tools...)

	s.logger.Info("mcp server starting", "tools", len(tools))

	stdio := server.NewStdioServer(mcpServer)
	stdio.SetErrorLogger(log.New(os.Stderr, "[mcp] ", log.LstdFlags))

	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// finish converts a handler outcome into a tool result and records it in
// the audit log. Errors become tool errors, never protocol errors.
func (s *Server) finish(tool string, start time.Time, markdown string, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		env := asEnvelope(err, tool)
		s.record(tool, start, &env.Kind)
		return mcp.NewToolResultError(env.Error()), nil
	}
	s.record(tool, start, nil)
	return mcp.NewToolResultText(markdown), nil
}

// asEnvelope returns err's classified envelope, wrapping it on the spot
// for the rare error that did not come through a service.
func asEnvelope(err error, tool string) *apierror.Error {
	var env *apierror.Error
	if errors.As(err, &env) {
		return env
	}
	return apierror.Wrap(err, apierror.Context{
		EntityType: "request",
		Operation:  "handle",
		Source:     tool,
	})
}

func (s *Server) record(tool string, start time.Time, kind *apierror.Kind) {
	if s.audit == nil {
		return
	}
	var errKind *string
	if kind != nil {
		v := string(*kind)
		errKind = &v
	}
	_, err := s.audit.RecordInvocation(auditlog.Invocation{
		Tool:       tool,
		Surface:    "mcp",
		DurationMs: time.Since(start).Milliseconds(),
		ErrorKind:  errKind,
	})
	if err != nil {
		s.logger.Warn("audit record failed", "tool", tool, "error", err)
	}
}
