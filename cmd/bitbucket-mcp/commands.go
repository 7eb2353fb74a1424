package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atlascli/bitbucket-mcp/internal/bitbucket"
	"github.com/atlascli/bitbucket-mcp/internal/format"
	"github.com/atlascli/bitbucket-mcp/internal/mcpserver"
	"github.com/atlascli/bitbucket-mcp/internal/pagination"
)

// runTool is the shared harness for the REST-mirror subcommands: build the
// services, run the operation, record the invocation, and print the result.
func runTool(tool string, fn func(ctx context.Context, s *services) (string, error)) error {
	s, err := buildServices()
	if err != nil {
		return err
	}
	defer s.close()

	start := time.Now()
	markdown, err := fn(context.Background(), s)
	s.record(tool, start, err)
	if err != nil {
		return err
	}
	return emit(markdown)
}

func emit(markdown string) error {
	out := markdown
	if viper.GetBool("html") {
		html, err := format.HTML(markdown)
		if err != nil {
			return err
		}
		out = html
	}
	fmt.Print(out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Println()
	}
	return nil
}

func pagingFlags(cmd *cobra.Command) {
	cmd.Flags().Int("page", 0, "1-based page number")
	cmd.Flags().Int("pagelen", 0, "page size (default 25)")
}

func pagingOptions(cmd *cobra.Command) bitbucket.ListOptions {
	page, _ := cmd.Flags().GetInt("page")
	pagelen, _ := cmd.Flags().GetInt("pagelen")
	return bitbucket.ListOptions{Page: page, PageLen: pagelen}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildServices()
			if err != nil {
				return err
			}
			defer s.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := mcpserver.New(s.bitbucket, s.jira, s.audit, s.logger)
			return srv.Run(ctx)
		},
	}
}

func lsWorkspacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls-workspaces",
		Short: "List accessible workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool("bb_ls_workspaces", func(ctx context.Context, s *services) (string, error) {
				page, err := s.bitbucket.ListWorkspaces(ctx, pagingOptions(cmd))
				if err != nil {
					return "", err
				}
				state := pagination.Extract(page.Envelope(), pagination.StylePage)
				return format.Workspaces(page.Values, state), nil
			})
		},
	}
	pagingFlags(cmd)
	return cmd
}

func getWorkspaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-workspace [slug]",
		Short: "Show one workspace (default: the resolved default workspace)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := workspaceFlag
			if len(args) == 1 {
				slug = args[0]
			}
			return runTool("bb_get_workspace", func(ctx context.Context, s *services) (string, error) {
				ws, err := s.bitbucket.GetWorkspace(ctx, slug)
				if err != nil {
					return "", err
				}
				return format.Workspace(ws), nil
			})
		},
	}
}

func lsReposCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls-repos",
		Short: "List repositories in a workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query, _ := cmd.Flags().GetString("query")
			sort, _ := cmd.Flags().GetString("sort")
			return runTool("bb_ls_repos", func(ctx context.Context, s *services) (string, error) {
				page, err := s.bitbucket.ListRepositories(ctx, workspaceFlag, bitbucket.RepositoryListOptions{
					ListOptions: pagingOptions(cmd),
					Query:       query,
					Sort:        sort,
				})
				if err != nil {
					return "", err
				}
				state := pagination.Extract(page.Envelope(), pagination.StylePage)
				return format.Repositories(page.Values, state), nil
			})
		},
	}
	cmd.Flags().String("query", "", `Bitbucket query expression, e.g. name ~ "api"`)
	cmd.Flags().String("sort", "", "sort field, e.g. -updated_on")
	pagingFlags(cmd)
	return cmd
}

func getRepoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-repo REPO",
		Short: "Show one repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool("bb_get_repo", func(ctx context.Context, s *services) (string, error) {
				repo, err := s.bitbucket.GetRepository(ctx, workspaceFlag, args[0])
				if err != nil {
					return "", err
				}
				return format.Repository(repo), nil
			})
		},
	}
}

func lsPRsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls-prs REPO",
		Short: "List pull requests (default state OPEN)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, _ := cmd.Flags().GetString("state")
			return runTool("bb_ls_prs", func(ctx context.Context, s *services) (string, error) {
				page, err := s.bitbucket.ListPullRequests(ctx, workspaceFlag, args[0], bitbucket.PullRequestListOptions{
					ListOptions: pagingOptions(cmd),
					State:       state,
				})
				if err != nil {
					return "", err
				}
				st := pagination.Extract(page.Envelope(), pagination.StylePage)
				return format.PullRequests(page.Values, st), nil
			})
		},
	}
	cmd.Flags().String("state", "", "OPEN, MERGED, DECLINED, or SUPERSEDED")
	pagingFlags(cmd)
	return cmd
}

func prID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid pull request ID %q", arg)
	}
	return id, nil
}

func getPRCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-pr REPO ID",
		Short: "Show one pull request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := prID(args[1])
			if err != nil {
				return err
			}
			return runTool("bb_get_pr", func(ctx context.Context, s *services) (string, error) {
				pr, err := s.bitbucket.GetPullRequest(ctx, workspaceFlag, args[0], id)
				if err != nil {
					return "", err
				}
				return format.PullRequest(pr), nil
			})
		},
	}
}

func createPRCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-pr REPO",
		Short: "Open a pull request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			description, _ := cmd.Flags().GetString("description")
			source, _ := cmd.Flags().GetString("source")
			destination, _ := cmd.Flags().GetString("destination")
			closeSource, _ := cmd.Flags().GetBool("close-source-branch")
			return runTool("bb_create_pr", func(ctx context.Context, s *services) (string, error) {
				pr, err := s.bitbucket.CreatePullRequest(ctx, workspaceFlag, args[0], bitbucket.CreatePullRequestInput{
					Title:             title,
					Description:       description,
					SourceBranch:      source,
					DestinationBranch: destination,
					CloseSourceBranch: closeSource,
				})
				if err != nil {
					return "", err
				}
				return format.PullRequest(pr), nil
			})
		},
	}
	cmd.Flags().String("title", "", "pull request title")
	cmd.Flags().String("description", "", "pull request description (Markdown)")
	cmd.Flags().String("source", "", "branch to merge from")
	cmd.Flags().String("destination", "", "branch to merge into (default: the main branch)")
	cmd.Flags().Bool("close-source-branch", false, "close the source branch after merge")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func lsPRCommentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls-pr-comments REPO ID",
		Short: "List the comments on a pull request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := prID(args[1])
			if err != nil {
				return err
			}
			return runTool("bb_ls_pr_comments", func(ctx context.Context, s *services) (string, error) {
				page, err := s.bitbucket.ListPullRequestComments(ctx, workspaceFlag, args[0], id, pagingOptions(cmd))
				if err != nil {
					return "", err
				}
				state := pagination.Extract(page.Envelope(), pagination.StylePage)
				return format.Comments(page.Values, state), nil
			})
		},
	}
	pagingFlags(cmd)
	return cmd
}

func addPRCommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-pr-comment REPO ID TEXT",
		Short: "Post a Markdown comment on a pull request",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := prID(args[1])
			if err != nil {
				return err
			}
			return runTool("bb_add_pr_comment", func(ctx context.Context, s *services) (string, error) {
				c, err := s.bitbucket.AddPullRequestComment(ctx, workspaceFlag, args[0], id, args[2])
				if err != nil {
					return "", err
				}
				return format.Comment(c), nil
			})
		},
	}
}

func commitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commits REPO [REVISION]",
		Short: "List commit history, optionally from a branch, tag, or commit",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			revision := ""
			if len(args) == 2 {
				revision = args[1]
			}
			return runTool("bb_commit_history", func(ctx context.Context, s *services) (string, error) {
				page, err := s.bitbucket.CommitHistory(ctx, workspaceFlag, args[0], revision, pagingOptions(cmd))
				if err != nil {
					return "", err
				}
				state := pagination.Extract(page.Envelope(), pagination.StylePage)
				return format.Commits(page.Values, state), nil
			})
		},
	}
	pagingFlags(cmd)
	return cmd
}

func diffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff REPO",
		Short: "Show a unified diff for a spec or a pull request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, _ := cmd.Flags().GetString("spec")
			pr, _ := cmd.Flags().GetInt("pr")
			if (spec == "") == (pr <= 0) {
				return errors.New("exactly one of --spec or --pr is required")
			}
			return runTool("bb_diff", func(ctx context.Context, s *services) (string, error) {
				if pr > 0 {
					diff, err := s.bitbucket.PullRequestDiff(ctx, workspaceFlag, args[0], pr)
					if err != nil {
						return "", err
					}
					return format.Diff(fmt.Sprintf("Diff for pull request #%d", pr), diff), nil
				}
				diff, err := s.bitbucket.Diff(ctx, workspaceFlag, args[0], spec)
				if err != nil {
					return "", err
				}
				return format.Diff(fmt.Sprintf("Diff for `%s`", spec), diff), nil
			})
		},
	}
	cmd.Flags().String("spec", "", `diff spec, e.g. "main..feature" or a commit hash`)
	cmd.Flags().Int("pr", 0, "pull request ID to diff")
	return cmd
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search code across a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cursor, _ := cmd.Flags().GetString("cursor")
			pagelen, _ := cmd.Flags().GetInt("pagelen")
			return runTool("bb_search", func(ctx context.Context, s *services) (string, error) {
				page, err := s.bitbucket.SearchCode(ctx, workspaceFlag, args[0], bitbucket.SearchOptions{
					Cursor:  cursor,
					PageLen: pagelen,
				})
				if err != nil {
					return "", err
				}
				state := pagination.Extract(page.Envelope(), pagination.StyleCursor)
				return format.CodeSearchResults(args[0], page.Values, state), nil
			})
		},
	}
	cmd.Flags().String("cursor", "", "continuation token from a previous page")
	cmd.Flags().Int("pagelen", 0, "page size (default 25)")
	return cmd
}

// requireJira guards the Jira subcommands behind configuration.
func requireJira(s *services) error {
	if s.jira == nil {
		return errors.New("jira is not configured; set --jira-base-url, --jira-email, and --jira-api-token")
	}
	return nil
}

func jiraIssuesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jira-issues JQL",
		Short: "Search Jira issues with a JQL query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startAt, _ := cmd.Flags().GetInt("start-at")
			maxResults, _ := cmd.Flags().GetInt("max-results")
			return runTool("jira_ls_issues", func(ctx context.Context, s *services) (string, error) {
				if err := requireJira(s); err != nil {
					return "", err
				}
				res, err := s.jira.SearchIssues(ctx, args[0], startAt, maxResults)
				if err != nil {
					return "", err
				}
				state := pagination.Extract(res.Envelope(), pagination.StylePage)
				return format.Issues(args[0], res, state), nil
			})
		},
	}
	cmd.Flags().Int("start-at", 0, "0-based offset of the first result")
	cmd.Flags().Int("max-results", 0, "page size (default 50)")
	return cmd
}

func jiraIssueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jira-issue KEY",
		Short: "Show one Jira issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool("jira_get_issue", func(ctx context.Context, s *services) (string, error) {
				if err := requireJira(s); err != nil {
					return "", err
				}
				issue, err := s.jira.GetIssue(ctx, args[0])
				if err != nil {
					return "", err
				}
				return format.Issue(issue), nil
			})
		},
	}
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent tool invocations from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			s, err := buildServices()
			if err != nil {
				return err
			}
			defer s.close()
			if s.audit == nil {
				return errors.New("audit log is not configured; set --audit-db")
			}

			invocations, err := s.audit.RecentInvocations(limit)
			if err != nil {
				return err
			}

			var sb strings.Builder
			sb.WriteString("# Recent invocations\n\n")
			if len(invocations) == 0 {
				sb.WriteString("No invocations recorded.\n")
				return emit(sb.String())
			}
			sb.WriteString("| Time | Tool | Surface | Duration | Outcome |\n")
			sb.WriteString("| --- | --- | --- | --- | --- |\n")
			for _, inv := range invocations {
				outcome := "ok"
				if inv.ErrorKind != nil {
					outcome = *inv.ErrorKind
				}
				fmt.Fprintf(&sb, "| %s | %s | %s | %dms | %s |\n",
					inv.CreatedAt, inv.Tool, inv.Surface, inv.DurationMs, outcome)
			}
			return emit(sb.String())
		},
	}
	cmd.Flags().Int("limit", 20, "maximum invocations to show")
	return cmd
}
