// Package format renders API results as Markdown text for tool and CLI
// output. Formatters are dumb: they take already-fetched values plus the
// normalized pagination state and never touch the network.
package format

import (
	"fmt"
	"strings"

	"github.com/atlascli/bitbucket-mcp/internal/bitbucket"
	"github.com/atlascli/bitbucket-mcp/internal/jira"
	"github.com/atlascli/bitbucket-mcp/internal/pagination"
)

// Footer renders the trailing pagination line for a listing.
func Footer(state pagination.State) string {
	noun := "results"
	if state.Count == 1 {
		noun = "result"
	}
	if !state.HasMore {
		return fmt.Sprintf("Showing %d %s.", state.Count, noun)
	}
	return fmt.Sprintf("Showing %d %s. More are available; pass cursor `%s` to fetch the next page.", state.Count, noun, state.NextCursor)
}

func table(sb *strings.Builder, headers []string, rows [][]string) {
	sb.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	seps := make([]string, len(headers))
	for i := range seps {
		seps[i] = "---"
	}
	sb.WriteString("| " + strings.Join(seps, " | ") + " |\n")
	for _, row := range rows {
		for i, cell := range row {
			row[i] = escapeCell(cell)
		}
		sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
}

// escapeCell keeps multi-line or pipe-containing values from breaking the
// table layout.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Workspaces renders a workspace listing.
func Workspaces(list []bitbucket.Workspace, state pagination.State) string {
	var sb strings.Builder
	sb.WriteString("# Workspaces\n\n")
	if len(list) == 0 {
		sb.WriteString("No workspaces found.\n\n")
	} else {
		rows := make([][]string, 0, len(list))
		for _, w := range list {
			rows = append(rows, []string{w.Slug, orDash(w.Name), orDash(w.UUID)})
		}
		table(&sb, []string{"Slug", "Name", "UUID"}, rows)
		sb.WriteString("\n")
	}
	sb.WriteString(Footer(state))
	sb.WriteString("\n")
	return sb.String()
}

// Workspace renders a single workspace.
func Workspace(w bitbucket.Workspace) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Workspace: %s\n\n", w.Slug)
	fmt.Fprintf(&sb, "- **Name**: %s\n", orDash(w.Name))
	fmt.Fprintf(&sb, "- **UUID**: %s\n", orDash(w.UUID))
	fmt.Fprintf(&sb, "- **Private**: %t\n", w.IsPrivate)
	if w.CreatedOn != "" {
		fmt.Fprintf(&sb, "- **Created**: %s\n", w.CreatedOn)
	}
	return sb.String()
}

// Repositories renders a repository listing.
func Repositories(list []bitbucket.Repository, state pagination.State) string {
	var sb strings.Builder
	sb.WriteString("# Repositories\n\n")
	if len(list) == 0 {
		sb.WriteString("No repositories found.\n\n")
	} else {
		rows := make([][]string, 0, len(list))
		for _, r := range list {
			rows = append(rows, []string{
				r.Slug,
				orDash(r.Description),
				orDash(r.Language),
				orDash(r.MainBranch.Name),
				orDash(r.UpdatedOn),
			})
		}
		table(&sb, []string{"Slug", "Description", "Language", "Main branch", "Updated"}, rows)
		sb.WriteString("\n")
	}
	sb.WriteString(Footer(state))
	sb.WriteString("\n")
	return sb.String()
}

// Repository renders a single repository.
func Repository(r bitbucket.Repository) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Repository: %s\n\n", r.FullName)
	if r.Description != "" {
		sb.WriteString(r.Description + "\n\n")
	}
	fmt.Fprintf(&sb, "- **Private**: %t\n", r.IsPrivate)
	fmt.Fprintf(&sb, "- **Language**: %s\n", orDash(r.Language))
	fmt.Fprintf(&sb, "- **Main branch**: %s\n", orDash(r.MainBranch.Name))
	fmt.Fprintf(&sb, "- **Updated**: %s\n", orDash(r.UpdatedOn))
	return sb.String()
}

// PullRequests renders a pull request listing.
func PullRequests(list []bitbucket.PullRequest, state pagination.State) string {
	var sb strings.Builder
	sb.WriteString("# Pull requests\n\n")
	if len(list) == 0 {
		sb.WriteString("No pull requests found.\n\n")
	} else {
		rows := make([][]string, 0, len(list))
		for _, pr := range list {
			rows = append(rows, []string{
				fmt.Sprintf("#%d", pr.ID),
				pr.Title,
				pr.State,
				orDash(pr.Author.DisplayName),
				fmt.Sprintf("%s → %s", pr.Source.Branch.Name, pr.Destination.Branch.Name),
			})
		}
		table(&sb, []string{"ID", "Title", "State", "Author", "Branches"}, rows)
		sb.WriteString("\n")
	}
	sb.WriteString(Footer(state))
	sb.WriteString("\n")
	return sb.String()
}

// PullRequest renders a single pull request.
func PullRequest(pr bitbucket.PullRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# PR #%d: %s\n\n", pr.ID, pr.Title)
	fmt.Fprintf(&sb, "- **State**: %s\n", pr.State)
	fmt.Fprintf(&sb, "- **Author**: %s\n", orDash(pr.Author.DisplayName))
	fmt.Fprintf(&sb, "- **Branches**: %s → %s\n", pr.Source.Branch.Name, pr.Destination.Branch.Name)
	fmt.Fprintf(&sb, "- **Comments**: %d\n", pr.CommentCount)
	fmt.Fprintf(&sb, "- **Created**: %s\n", orDash(pr.CreatedOn))
	fmt.Fprintf(&sb, "- **Updated**: %s\n", orDash(pr.UpdatedOn))
	if pr.Links.HTML.Href != "" {
		fmt.Fprintf(&sb, "- **URL**: %s\n", pr.Links.HTML.Href)
	}
	if pr.Description != "" {
		sb.WriteString("\n## Description\n\n")
		sb.WriteString(pr.Description + "\n")
	}
	return sb.String()
}

// Comments renders the comments of a pull request.
func Comments(list []bitbucket.Comment, state pagination.State) string {
	var sb strings.Builder
	sb.WriteString("# Comments\n\n")
	if len(list) == 0 {
		sb.WriteString("No comments found.\n\n")
	}
	for _, c := range list {
		if c.Deleted {
			continue
		}
		fmt.Fprintf(&sb, "## %s (%s)\n\n", orDash(c.User.DisplayName), orDash(c.CreatedOn))
		if c.Inline != nil {
			fmt.Fprintf(&sb, "_On `%s`_\n\n", c.Inline.Path)
		}
		sb.WriteString(c.Content.Raw + "\n\n")
	}
	sb.WriteString(Footer(state))
	sb.WriteString("\n")
	return sb.String()
}

// Comment renders the confirmation for a newly added comment.
func Comment(c bitbucket.Comment) string {
	return fmt.Sprintf("Comment #%d added.\n\n%s\n", c.ID, c.Content.Raw)
}

// Commits renders a commit history listing.
func Commits(list []bitbucket.Commit, state pagination.State) string {
	var sb strings.Builder
	sb.WriteString("# Commits\n\n")
	if len(list) == 0 {
		sb.WriteString("No commits found.\n\n")
	} else {
		rows := make([][]string, 0, len(list))
		for _, c := range list {
			hash := c.Hash
			if len(hash) > 12 {
				hash = hash[:12]
			}
			rows = append(rows, []string{hash, firstLine(c.Message), orDash(c.Author.Raw), orDash(c.Date)})
		}
		table(&sb, []string{"Hash", "Message", "Author", "Date"}, rows)
		sb.WriteString("\n")
	}
	sb.WriteString(Footer(state))
	sb.WriteString("\n")
	return sb.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Diff renders a raw unified diff in a fenced block.
func Diff(title, diff string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Diff: %s\n\n", title)
	if strings.TrimSpace(diff) == "" {
		sb.WriteString("No differences.\n")
		return sb.String()
	}
	sb.WriteString("```diff\n")
	sb.WriteString(diff)
	if !strings.HasSuffix(diff, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n")
	return sb.String()
}

// CodeSearchResults renders workspace code search matches.
func CodeSearchResults(query string, list []bitbucket.CodeSearchResult, state pagination.State) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Code search: %s\n\n", query)
	if len(list) == 0 {
		sb.WriteString("No matches found.\n\n")
	}
	for _, res := range list {
		fmt.Fprintf(&sb, "## %s (%d matches)\n\n", res.File.Path, res.ContentMatchCount)
		for _, cm := range res.ContentMatches {
			for _, line := range cm.Lines {
				var text strings.Builder
				for _, seg := range line.Segments {
					text.WriteString(seg.Text)
				}
				fmt.Fprintf(&sb, "- line %d: `%s`\n", line.Line, text.String())
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString(Footer(state))
	sb.WriteString("\n")
	return sb.String()
}

// Issues renders a Jira issue listing.
func Issues(jql string, res jira.SearchResult, state pagination.State) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Issues: %s\n\n", jql)
	if len(res.Issues) == 0 {
		sb.WriteString("No issues found.\n\n")
	} else {
		rows := make([][]string, 0, len(res.Issues))
		for _, issue := range res.Issues {
			rows = append(rows, []string{
				issue.Key,
				issue.Fields.Summary,
				orDash(issue.Fields.Status.Name),
				orDash(issue.Fields.IssueType.Name),
				orDash(issue.Fields.Assignee.DisplayName),
			})
		}
		table(&sb, []string{"Key", "Summary", "Status", "Type", "Assignee"}, rows)
		sb.WriteString("\n")
	}
	sb.WriteString(Footer(state))
	sb.WriteString("\n")
	return sb.String()
}

// Issue renders a single Jira issue.
func Issue(issue jira.Issue) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s: %s\n\n", issue.Key, issue.Fields.Summary)
	fmt.Fprintf(&sb, "- **Status**: %s\n", orDash(issue.Fields.Status.Name))
	fmt.Fprintf(&sb, "- **Type**: %s\n", orDash(issue.Fields.IssueType.Name))
	fmt.Fprintf(&sb, "- **Priority**: %s\n", orDash(issue.Fields.Priority.Name))
	fmt.Fprintf(&sb, "- **Assignee**: %s\n", orDash(issue.Fields.Assignee.DisplayName))
	fmt.Fprintf(&sb, "- **Updated**: %s\n", orDash(issue.Fields.Updated))
	if desc, ok := issue.Fields.Description.(string); ok && desc != "" {
		sb.WriteString("\n## Description\n\n")
		sb.WriteString(desc + "\n")
	}
	return sb.String()
}
