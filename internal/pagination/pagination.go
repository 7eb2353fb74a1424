// Package pagination normalizes the two pagination conventions used by the
// upstream APIs: 1-based page numbers with a fixed page size (Bitbucket
// Cloud list endpoints) and opaque continuation tokens (search-like
// endpoints).
package pagination

import (
	"net/url"
	"strconv"
)

// Style selects which upstream convention a response uses. It is declared
// by the caller, never inferred from the response.
type Style int

const (
	// StylePage is continuation via a 1-based integer page index.
	StylePage Style = iota
	// StyleCursor is continuation via an opaque server-issued token.
	StyleCursor
)

// State is the normalized continuation status of a single list call. It is
// computed fresh per call and discarded after rendering.
type State struct {
	// HasMore is true iff more items are known to exist beyond this page.
	HasMore bool
	// NextCursor is the token for the next page. For StylePage it is the
	// next page number encoded as a string. Empty unless HasMore.
	NextCursor string
	// Count is the number of items in the current page.
	Count int
}

// Envelope carries the pagination-relevant fields of a raw paged response.
// Which fields are meaningful depends on the declared Style.
type Envelope struct {
	Page    int    // current 1-based page number (StylePage)
	PageLen int    // page size (StylePage)
	Total   *int   // grand total when the upstream provided one (StylePage)
	Next    string // next-page URL or token (both styles)
	Items   int    // number of items returned in this page
}

// Extract computes the continuation state for a paged response.
//
// For StylePage without a total, a full page is taken as evidence that more
// pages may follow. This is best effort, not a guarantee: a result count
// that is an exact multiple of the page size will report one page too many.
func Extract(env Envelope, style Style) State {
	state := State{Count: env.Items}

	if style == StyleCursor {
		if env.Next != "" {
			state.HasMore = true
			state.NextCursor = cursorFromNext(env.Next)
		}
		return state
	}

	page := env.Page
	if page == 0 {
		page = 1
	}

	hasMore := false
	switch {
	case env.Total != nil:
		hasMore = page*env.PageLen < *env.Total
	case env.PageLen > 0:
		hasMore = env.Items == env.PageLen
	}

	if hasMore {
		state.HasMore = true
		state.NextCursor = strconv.Itoa(page + 1)
	}
	return state
}

// cursorFromNext extracts the continuation token from a next-page value.
// When the value is a full URL only the cursor query parameter is returned,
// not the whole URL; a bare token is used verbatim.
func cursorFromNext(next string) string {
	u, err := url.Parse(next)
	if err != nil || u.RawQuery == "" {
		return next
	}
	q := u.Query()
	for _, key := range []string{"cursor", "after", "page"} {
		if v := q.Get(key); v != "" {
			return v
		}
	}
	return next
}
