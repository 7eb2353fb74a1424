package config

import "github.com/spf13/viper"

// Version is set at build time via -ldflags.
var Version = "dev"

// Config holds all runtime configuration. Values are merged from flags,
// BITBUCKET_MCP_* environment variables, and defaults by viper (set up by
// the cobra command in cmd/bitbucket-mcp).
type Config struct {
	BitbucketBaseURL string
	Username         string
	AppPassword      string
	DefaultWorkspace string

	JiraBaseURL  string
	JiraEmail    string
	JiraAPIToken string

	AuditDB     string // path to the SQLite audit log; empty disables it
	HTTPTimeout int    // seconds
	MaxRetries  int
	Verbose     bool
}

// JiraEnabled reports whether Jira credentials are configured. The Jira
// tools are only registered when they are.
func (c Config) JiraEnabled() bool {
	return c.JiraBaseURL != "" && c.JiraEmail != "" && c.JiraAPIToken != ""
}

// Load reads configuration from viper.
func Load() Config {
	return Config{
		BitbucketBaseURL: viper.GetString("bitbucket_base_url"),
		Username:         viper.GetString("username"),
		AppPassword:      viper.GetString("app_password"),
		DefaultWorkspace: viper.GetString("default_workspace"),

		JiraBaseURL:  viper.GetString("jira_base_url"),
		JiraEmail:    viper.GetString("jira_email"),
		JiraAPIToken: viper.GetString("jira_api_token"),

		AuditDB:     viper.GetString("audit_db"),
		HTTPTimeout: viper.GetInt("http_timeout"),
		MaxRetries:  viper.GetInt("max_retries"),
		Verbose:     viper.GetBool("verbose"),
	}
}
