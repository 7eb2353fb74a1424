package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atlascli/bitbucket-mcp/internal/apierror"
	"github.com/atlascli/bitbucket-mcp/internal/atlassian"
	"github.com/atlascli/bitbucket-mcp/internal/auditlog"
	"github.com/atlascli/bitbucket-mcp/internal/bitbucket"
	"github.com/atlascli/bitbucket-mcp/internal/config"
	"github.com/atlascli/bitbucket-mcp/internal/jira"
)

// workspaceFlag overrides the configured default workspace for one
// invocation. It is a plain flag, not configuration.
var workspaceFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:           "bitbucket-mcp",
		Short:         "Bitbucket and Jira tools over MCP and the command line",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("bitbucket-base-url", "https://api.bitbucket.org/2.0", "Bitbucket Cloud API base URL")
	pf.String("username", "", "Bitbucket username")
	pf.String("app-password", "", "Bitbucket app password")
	pf.String("default-workspace", "", "workspace slug used when none is given")
	pf.String("jira-base-url", "", "Jira site base URL, e.g. https://example.atlassian.net")
	pf.String("jira-email", "", "Jira account email")
	pf.String("jira-api-token", "", "Jira API token")
	pf.String("audit-db", "", "path to the SQLite invocation log (empty disables it)")
	pf.Int("http-timeout", 30, "HTTP timeout in seconds")
	pf.Int("max-retries", 2, "retries for transient API failures")
	pf.Bool("verbose", false, "enable debug logging")
	pf.Bool("html", false, "render command output as HTML instead of Markdown")
	pf.StringVarP(&workspaceFlag, "workspace", "w", "", "workspace slug for this invocation")

	// Bind flags to viper. Viper keys use underscores so they match the
	// env var suffix after stripping the BITBUCKET_MCP_ prefix.
	bindFlag := func(viperKey, flagName string) {
		_ = viper.BindPFlag(viperKey, pf.Lookup(flagName))
	}
	bindFlag("bitbucket_base_url", "bitbucket-base-url")
	bindFlag("username", "username")
	bindFlag("app_password", "app-password")
	bindFlag("default_workspace", "default-workspace")
	bindFlag("jira_base_url", "jira-base-url")
	bindFlag("jira_email", "jira-email")
	bindFlag("jira_api_token", "jira-api-token")
	bindFlag("audit_db", "audit-db")
	bindFlag("http_timeout", "http-timeout")
	bindFlag("max_retries", "max-retries")
	bindFlag("verbose", "verbose")
	bindFlag("html", "html")

	// BITBUCKET_MCP_APP_PASSWORD -> "app_password", etc. Flag names use
	// hyphens, hence the replacer.
	viper.SetEnvPrefix("BITBUCKET_MCP")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	rootCmd.AddCommand(
		serveCmd(),
		lsWorkspacesCmd(),
		getWorkspaceCmd(),
		lsReposCmd(),
		getRepoCmd(),
		lsPRsCmd(),
		getPRCmd(),
		createPRCmd(),
		lsPRCommentsCmd(),
		addPRCommentCmd(),
		commitsCmd(),
		diffCmd(),
		searchCmd(),
		jiraIssuesCmd(),
		jiraIssueCmd(),
		auditCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a classified failure to a shell exit code so scripts can
// branch on the failure class.
func exitCode(err error) int {
	var env *apierror.Error
	if !errors.As(err, &env) {
		return 1
	}
	switch env.Kind {
	case apierror.KindValidation:
		return 2
	case apierror.KindNotFound:
		return 3
	case apierror.KindAccessDenied:
		return 4
	case apierror.KindRateLimit:
		return 5
	case apierror.KindNetwork:
		return 6
	default:
		return 1
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// services holds everything a command needs. audit and jira are nil when
// not configured.
type services struct {
	bitbucket *bitbucket.Service
	jira      *jira.Service
	audit     *auditlog.DB
	logger    *slog.Logger
	cfg       config.Config
}

func buildServices() (*services, error) {
	cfg := config.Load()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	httpClient := &http.Client{Timeout: time.Duration(cfg.HTTPTimeout) * time.Second}

	bbClient := atlassian.NewClient(cfg.BitbucketBaseURL, cfg.Username, cfg.AppPassword,
		atlassian.WithHTTPClient(httpClient),
		atlassian.WithMaxRetries(uint64(cfg.MaxRetries)),
		atlassian.WithLogger(logger),
	)
	s := &services{
		bitbucket: bitbucket.NewService(bbClient, bitbucket.NewWorkspaceCache(cfg.DefaultWorkspace), logger),
		logger:    logger,
		cfg:       cfg,
	}

	if cfg.JiraEnabled() {
		jiraClient := atlassian.NewClient(cfg.JiraBaseURL+"/rest/api/3", cfg.JiraEmail, cfg.JiraAPIToken,
			atlassian.WithHTTPClient(httpClient),
			atlassian.WithMaxRetries(uint64(cfg.MaxRetries)),
			atlassian.WithLogger(logger),
		)
		s.jira = jira.NewService(jiraClient, logger)
	}

	if cfg.AuditDB != "" {
		audit, err := auditlog.Open(cfg.AuditDB)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		s.audit = audit
	}
	return s, nil
}

func (s *services) close() {
	if s.audit != nil {
		_ = s.audit.Close()
	}
}

// record logs one CLI invocation to the audit database, if configured.
func (s *services) record(tool string, start time.Time, err error) {
	if s.audit == nil {
		return
	}
	var errKind *string
	if err != nil {
		kind := string(apierror.KindUnknown)
		var env *apierror.Error
		if errors.As(err, &env) {
			kind = string(env.Kind)
		}
		errKind = &kind
	}
	_, recErr := s.audit.RecordInvocation(auditlog.Invocation{
		Tool:       tool,
		Surface:    "cli",
		DurationMs: time.Since(start).Milliseconds(),
		ErrorKind:  errKind,
	})
	if recErr != nil {
		s.logger.Warn("audit record failed", "tool", tool, "error", recErr)
	}
}
