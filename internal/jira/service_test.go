package jira

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atlascli/bitbucket-mcp/internal/apierror"
	"github.com/atlascli/bitbucket-mcp/internal/atlassian"
	"github.com/atlascli/bitbucket-mcp/internal/pagination"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewService(atlassian.NewClient(srv.URL, "me@example.com", "token", atlassian.WithMaxRetries(0)), nil)
}

func TestSearchIssues(t *testing.T) {
	var gotJQL, gotStartAt string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotJQL = r.URL.Query().Get("jql")
		gotStartAt = r.URL.Query().Get("startAt")
		w.Write([]byte(`{
			"total": 3, "startAt": 0, "maxResults": 2,
			"issues": [
				{"key": "PROJ-1", "fields": {"summary": "Login broken", "status": {"name": "Open"}}},
				{"key": "PROJ-2", "fields": {"summary": "Add search", "status": {"name": "In Progress"}}}
			]
		}`))
	})

	res, err := svc.SearchIssues(context.Background(), `project = PROJ`, 0, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotJQL != "project = PROJ" {
		t.Errorf("expected jql parameter, got %q", gotJQL)
	}
	if gotStartAt != "" {
		t.Errorf("expected startAt omitted for 0, got %q", gotStartAt)
	}
	if len(res.Issues) != 2 || res.Issues[0].Key != "PROJ-1" {
		t.Errorf("unexpected issues: %+v", res.Issues)
	}

	state := pagination.Extract(res.Envelope(), pagination.StylePage)
	if !state.HasMore {
		t.Error("expected more results (2 of 3)")
	}
	if state.NextCursor != "2" {
		t.Errorf("expected next cursor 2, got %q", state.NextCursor)
	}
}

func TestSearchIssues_SecondPageEnvelope(t *testing.T) {
	res := SearchResult{Total: 3, StartAt: 2, MaxResults: 2, Issues: make([]Issue, 1)}
	state := pagination.Extract(res.Envelope(), pagination.StylePage)
	if state.HasMore {
		t.Error("expected no more results on the final page")
	}
}

func TestSearchIssues_EmptyJQL(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made for empty JQL")
	})

	_, err := svc.SearchIssues(context.Background(), "", 0, 0)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestGetIssue(t *testing.T) {
	var gotPath string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"key": "PROJ-9", "fields": {"summary": "Crash on save", "priority": {"name": "High"}, "assignee": {"displayName": "Dana"}}}`))
	})

	issue, err := svc.GetIssue(context.Background(), "PROJ-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/issue/PROJ-9" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if issue.Fields.Priority.Name != "High" || issue.Fields.Assignee.DisplayName != "Dana" {
		t.Errorf("unexpected issue fields: %+v", issue.Fields)
	}
}

func TestGetIssue_JiraArrayErrorShape(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors": [{"status": 404, "code": "ISSUE_NOT_FOUND", "title": "Issue does not exist", "message": "Issue PROJ-404 not found"}]}`))
	})

	_, err := svc.GetIssue(context.Background(), "PROJ-404")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var env *apierror.Error
	if !errors.As(err, &env) {
		t.Fatalf("expected envelope, got %T", err)
	}
	if env.Kind != apierror.KindNotFound {
		t.Errorf("expected kind %q, got %q", apierror.KindNotFound, env.Kind)
	}
	if env.HTTPStatus != 404 {
		t.Errorf("expected status 404, got %d", env.HTTPStatus)
	}
}
