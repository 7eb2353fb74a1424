package bitbucket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/atlascli/bitbucket-mcp/internal/apierror"
	"github.com/atlascli/bitbucket-mcp/internal/atlassian"
	"github.com/atlascli/bitbucket-mcp/internal/pagination"
)

func newTestService(t *testing.T, defaultWorkspace string, handler http.HandlerFunc) (*Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := atlassian.NewClient(srv.URL, "user", "pass", atlassian.WithMaxRetries(0))
	return NewService(client, NewWorkspaceCache(defaultWorkspace), nil), srv
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

func TestListWorkspaces(t *testing.T) {
	var gotPath, gotPagelen string
	svc, _ := newTestService(t, "", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPagelen = r.URL.Query().Get("pagelen")
		writeJSON(w, map[string]any{
			"page":    1,
			"pagelen": 10,
			"size":    2,
			"values": []map[string]any{
				{"slug": "acme", "name": "Acme Inc"},
				{"slug": "side", "name": "Side Projects"},
			},
		})
	})

	page, err := svc.ListWorkspaces(context.Background(), ListOptions{PageLen: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/workspaces" {
		t.Errorf("expected path /workspaces, got %q", gotPath)
	}
	if gotPagelen != "10" {
		t.Errorf("expected pagelen=10, got %q", gotPagelen)
	}
	if len(page.Values) != 2 || page.Values[0].Slug != "acme" {
		t.Errorf("unexpected workspaces: %+v", page.Values)
	}

	state := pagination.Extract(page.Envelope(), pagination.StylePage)
	if state.HasMore {
		t.Error("expected no more pages for 2 of 2 results")
	}
	if state.Count != 2 {
		t.Errorf("expected count 2, got %d", state.Count)
	}
}

func TestGetWorkspace_NotFoundEnvelope(t *testing.T) {
	svc, _ := newTestService(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"type":"error","error":{"message":"No workspace with identifier 'nope'."}}`))
	})

	_, err := svc.GetWorkspace(context.Background(), "nope")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var env *apierror.Error
	if !errors.As(err, &env) {
		t.Fatalf("expected *apierror.Error, got %T: %v", err, err)
	}
	if env.Kind != apierror.KindNotFound {
		t.Errorf("expected kind %q, got %q", apierror.KindNotFound, env.Kind)
	}
	if env.HTTPStatus != 404 {
		t.Errorf("expected status 404, got %d", env.HTTPStatus)
	}
	if !strings.Contains(env.Message, "failed to get workspace") {
		t.Errorf("expected operation context in message, got %q", env.Message)
	}
}

func TestListRepositories_DefaultWorkspaceFromConfig(t *testing.T) {
	var gotPath string
	svc, _ := newTestService(t, "acme", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeJSON(w, map[string]any{
			"page": 1, "pagelen": 25,
			"values": []map[string]any{{"slug": "api", "full_name": "acme/api"}},
		})
	})

	page, err := svc.ListRepositories(context.Background(), "", RepositoryListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/repositories/acme" {
		t.Errorf("expected default workspace in path, got %q", gotPath)
	}
	if len(page.Values) != 1 || page.Values[0].Slug != "api" {
		t.Errorf("unexpected repositories: %+v", page.Values)
	}
}

func TestListRepositories_QueryAndSort(t *testing.T) {
	var gotQ, gotSort string
	svc, _ := newTestService(t, "acme", func(w http.ResponseWriter, r *http.Request) {
		gotQ = r.URL.Query().Get("q")
		gotSort = r.URL.Query().Get("sort")
		writeJSON(w, map[string]any{"values": []any{}})
	})

	_, err := svc.ListRepositories(context.Background(), "", RepositoryListOptions{
		Query: `name ~ "api"`,
		Sort:  "-updated_on",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQ != `name ~ "api"` {
		t.Errorf("expected q filter, got %q", gotQ)
	}
	if gotSort != "-updated_on" {
		t.Errorf("expected sort, got %q", gotSort)
	}
}

func TestDefaultWorkspace_ResolvedFromFirstListed(t *testing.T) {
	workspaceCalls := 0
	svc, _ := newTestService(t, "", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/workspaces":
			workspaceCalls++
			writeJSON(w, map[string]any{
				"values": []map[string]any{{"slug": "first"}, {"slug": "second"}},
			})
		case strings.HasPrefix(r.URL.Path, "/repositories/first"):
			writeJSON(w, map[string]any{"values": []any{}})
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{}`))
		}
	})

	// Two calls with no explicit workspace; the lookup must be memoized.
	for i := 0; i < 2; i++ {
		if _, err := svc.ListRepositories(context.Background(), "", RepositoryListOptions{}); err != nil {
			t.Fatalf("unexpected error on call %d: %v", i+1, err)
		}
	}
	if workspaceCalls != 1 {
		t.Errorf("expected exactly 1 workspace lookup, got %d", workspaceCalls)
	}

	// After a reset the lookup happens again.
	svc.cache.Reset()
	if _, err := svc.ListRepositories(context.Background(), "", RepositoryListOptions{}); err != nil {
		t.Fatalf("unexpected error after reset: %v", err)
	}
	if workspaceCalls != 2 {
		t.Errorf("expected workspace lookup after reset, got %d calls", workspaceCalls)
	}
}

func TestListPullRequests_StateDefaultsToOpen(t *testing.T) {
	var gotState string
	svc, _ := newTestService(t, "acme", func(w http.ResponseWriter, r *http.Request) {
		gotState = r.URL.Query().Get("state")
		writeJSON(w, map[string]any{
			"page": 1, "pagelen": 25,
			"values": []map[string]any{{
				"id": 7, "title": "Fix login", "state": "OPEN",
				"author": map[string]any{"display_name": "Dana"},
			}},
		})
	})

	page, err := svc.ListPullRequests(context.Background(), "", "api", PullRequestListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotState != "OPEN" {
		t.Errorf("expected default state OPEN, got %q", gotState)
	}
	if len(page.Values) != 1 || page.Values[0].ID != 7 {
		t.Errorf("unexpected pull requests: %+v", page.Values)
	}
	if page.Values[0].Author.DisplayName != "Dana" {
		t.Errorf("unexpected author: %+v", page.Values[0].Author)
	}
}

func TestGetPullRequest_Path(t *testing.T) {
	var gotPath string
	svc, _ := newTestService(t, "acme", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeJSON(w, map[string]any{"id": 42, "title": "Refactor", "state": "MERGED"})
	})

	pr, err := svc.GetPullRequest(context.Background(), "", "api", 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/repositories/acme/api/pullrequests/42" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if pr.State != "MERGED" {
		t.Errorf("expected state MERGED, got %q", pr.State)
	}
}

func TestCreatePullRequest(t *testing.T) {
	var gotBody map[string]any
	svc, _ := newTestService(t, "acme", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{"id": 101, "title": "Add search", "state": "OPEN"})
	})

	pr, err := svc.CreatePullRequest(context.Background(), "", "api", CreatePullRequestInput{
		Title:             "Add search",
		SourceBranch:      "feature/search",
		DestinationBranch: "main",
		CloseSourceBranch: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pr.ID != 101 {
		t.Errorf("expected PR id 101, got %d", pr.ID)
	}
	if gotBody["title"] != "Add search" {
		t.Errorf("unexpected title in body: %v", gotBody["title"])
	}
	src := gotBody["source"].(map[string]any)["branch"].(map[string]any)["name"]
	if src != "feature/search" {
		t.Errorf("unexpected source branch: %v", src)
	}
	if gotBody["close_source_branch"] != true {
		t.Error("expected close_source_branch to be set")
	}
}

func TestCreatePullRequest_MissingFields(t *testing.T) {
	svc, _ := newTestService(t, "acme", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made for invalid input")
	})

	_, err := svc.CreatePullRequest(context.Background(), "", "api", CreatePullRequestInput{Title: "no source"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var env *apierror.Error
	if !errors.As(err, &env) {
		t.Fatalf("expected envelope, got %T", err)
	}
	if env.Kind != apierror.KindUnknown && env.Kind != apierror.KindValidation {
		t.Errorf("unexpected kind %q", env.Kind)
	}
}

func TestAddPullRequestComment(t *testing.T) {
	var gotBody map[string]any
	svc, _ := newTestService(t, "acme", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{
			"id":      5,
			"content": map[string]any{"raw": "Looks good"},
			"user":    map[string]any{"display_name": "Dana"},
		})
	})

	c, err := svc.AddPullRequestComment(context.Background(), "", "api", 7, "Looks good")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != 5 || c.Content.Raw != "Looks good" {
		t.Errorf("unexpected comment: %+v", c)
	}
	content := gotBody["content"].(map[string]any)
	if content["raw"] != "Looks good" {
		t.Errorf("unexpected body: %v", gotBody)
	}
}

func TestCommitHistory_WithRevision(t *testing.T) {
	var gotPath string
	svc, _ := newTestService(t, "acme", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeJSON(w, map[string]any{
			"page": 1, "pagelen": 30,
			"values": []map[string]any{{
				"hash":    "abc1234def",
				"message": "fix: handle empty diff",
				"author":  map[string]any{"raw": "Dana <dana@acme.test>"},
			}},
		})
	})

	page, err := svc.CommitHistory(context.Background(), "", "api", "main", ListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/repositories/acme/api/commits/main" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if len(page.Values) != 1 || page.Values[0].Hash != "abc1234def" {
		t.Errorf("unexpected commits: %+v", page.Values)
	}
}

func TestDiff_ReturnsRawText(t *testing.T) {
	const diff = "diff --git a/x b/x\n-old\n+new\n"
	var gotPath string
	svc, _ := newTestService(t, "acme", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(diff))
	})

	got, err := svc.Diff(context.Background(), "", "api", "main..feature")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/repositories/acme/api/diff/main..feature" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if got != diff {
		t.Errorf("expected raw diff, got %q", got)
	}
}

func TestSearchCode_CursorContinuation(t *testing.T) {
	var gotQuery, gotPage string
	svc, _ := newTestService(t, "acme", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		gotPage = r.URL.Query().Get("page")
		writeJSON(w, map[string]any{
			"page": 2, "pagelen": 10,
			"next": "https://api.bitbucket.org/2.0/workspaces/acme/search/code?search_query=TODO&page=3",
			"values": []map[string]any{{
				"type":                "code_search_result",
				"content_match_count": 2,
				"file":                map[string]any{"path": "internal/service.go"},
			}},
		})
	})

	page, err := svc.SearchCode(context.Background(), "", "TODO", SearchOptions{Cursor: "2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "TODO" {
		t.Errorf("expected search_query TODO, got %q", gotQuery)
	}
	if gotPage != "2" {
		t.Errorf("expected page cursor 2, got %q", gotPage)
	}

	state := pagination.Extract(page.Envelope(), pagination.StyleCursor)
	if !state.HasMore {
		t.Error("expected more results")
	}
	if state.NextCursor != "3" {
		t.Errorf("expected next cursor 3, got %q", state.NextCursor)
	}
}

func TestSearchCode_EmptyQuery(t *testing.T) {
	svc, _ := newTestService(t, "acme", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made for an empty query")
	})

	_, err := svc.SearchCode(context.Background(), "", "", SearchOptions{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
