package bitbucket

import "github.com/atlascli/bitbucket-mcp/internal/pagination"

// Page is the Bitbucket Cloud paged list envelope. The size field (grand
// total) is omitted by some endpoints, hence the pointer.
type Page[T any] struct {
	Values  []T    `json:"values"`
	PageNum int    `json:"page"`
	PageLen int    `json:"pagelen"`
	Size    *int   `json:"size"`
	Next    string `json:"next"`
}

// Envelope adapts the page to the pagination extractor's input.
func (p Page[T]) Envelope() pagination.Envelope {
	return pagination.Envelope{
		Page:    p.PageNum,
		PageLen: p.PageLen,
		Total:   p.Size,
		Next:    p.Next,
		Items:   len(p.Values),
	}
}

// Workspace is a Bitbucket Cloud account-level namespace.
type Workspace struct {
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	UUID      string `json:"uuid"`
	IsPrivate bool   `json:"is_private"`
	CreatedOn string `json:"created_on"`
}

// Account is the subset of a Bitbucket user or team we surface.
type Account struct {
	DisplayName string `json:"display_name"`
	Nickname    string `json:"nickname"`
}

// Branch names the tip of a ref.
type Branch struct {
	Name string `json:"name"`
}

// Repository is a Bitbucket Cloud repository.
type Repository struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
	Language    string `json:"language"`
	UpdatedOn   string `json:"updated_on"`
	MainBranch  Branch `json:"mainbranch"`
	Owner       Account `json:"owner"`
}

// Endpoint is one side of a pull request (source or destination).
type Endpoint struct {
	Branch Branch `json:"branch"`
}

// PullRequest is a Bitbucket Cloud pull request.
type PullRequest struct {
	ID           int      `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	State        string   `json:"state"` // OPEN, MERGED, DECLINED, SUPERSEDED
	Author       Account  `json:"author"`
	Source       Endpoint `json:"source"`
	Destination  Endpoint `json:"destination"`
	CommentCount int      `json:"comment_count"`
	CreatedOn    string   `json:"created_on"`
	UpdatedOn    string   `json:"updated_on"`
	Links        Links    `json:"links"`
}

// Links holds the hypermedia links we care about.
type Links struct {
	HTML struct {
		Href string `json:"href"`
	} `json:"html"`
}

// Comment is a pull request comment.
type Comment struct {
	ID      int `json:"id"`
	Content struct {
		Raw string `json:"raw"`
	} `json:"content"`
	User      Account `json:"user"`
	CreatedOn string  `json:"created_on"`
	Deleted   bool    `json:"deleted"`
	Inline    *struct {
		Path string `json:"path"`
		To   *int   `json:"to"`
	} `json:"inline"`
}

// Commit is a single commit in a repository's history.
type Commit struct {
	Hash    string `json:"hash"`
	Message string `json:"message"`
	Date    string `json:"date"`
	Author  struct {
		Raw  string  `json:"raw"`
		User Account `json:"user"`
	} `json:"author"`
}

// CodeSearchResult is one match from the workspace code search endpoint.
type CodeSearchResult struct {
	Type              string `json:"type"`
	ContentMatchCount int    `json:"content_match_count"`
	File              struct {
		Path string `json:"path"`
	} `json:"file"`
	ContentMatches []struct {
		Lines []struct {
			Line     int `json:"line"`
			Segments []struct {
				Text  string `json:"text"`
				Match bool   `json:"match"`
			} `json:"segments"`
		} `json:"lines"`
	} `json:"content_matches"`
}
