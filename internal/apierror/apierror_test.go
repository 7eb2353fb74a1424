package apierror

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// upstreamError mimics the transport error produced by the REST client: it
// carries the HTTP status and the decoded JSON error body.
type upstreamError struct {
	status int
	body   any
	msg    string
}

func (e *upstreamError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return fmt.Sprintf("unexpected status %d", e.status)
}

func (e *upstreamError) HTTPStatus() int { return e.status }
func (e *upstreamError) ErrorBody() any  { return e.body }

func TestClassify_ClassicShape(t *testing.T) {
	err := &upstreamError{
		status: 404,
		body: map[string]any{
			"error": map[string]any{
				"message": "Repository not found",
				"detail":  "No repository matches the slug",
			},
		},
	}

	c := Classify(err, 404)
	if c.Kind != KindNotFound {
		t.Errorf("expected kind %q, got %q", KindNotFound, c.Kind)
	}
	if c.StatusCode != 404 {
		t.Errorf("expected status 404, got %d", c.StatusCode)
	}
}

func TestClassify_AlternateShape(t *testing.T) {
	err := &upstreamError{
		status: 403,
		body: map[string]any{
			"type":    "error",
			"status":  float64(403),
			"message": "Forbidden",
		},
	}

	c := Classify(err, 403)
	if c.Kind != KindAccessDenied {
		t.Errorf("expected kind %q, got %q", KindAccessDenied, c.Kind)
	}
	if c.StatusCode != 403 {
		t.Errorf("expected status 403, got %d", c.StatusCode)
	}
}

func TestClassify_AlternateShapeStatusOverride(t *testing.T) {
	// The body status takes precedence over the transport status.
	err := &upstreamError{
		status: 500,
		body: map[string]any{
			"type":    "error",
			"status":  float64(404),
			"message": "gone",
		},
	}

	c := Classify(err, 500)
	if c.Kind != KindNotFound {
		t.Errorf("expected kind %q, got %q", KindNotFound, c.Kind)
	}
	if c.StatusCode != 404 {
		t.Errorf("expected status 404, got %d", c.StatusCode)
	}
}

func TestClassify_ArrayShape(t *testing.T) {
	err := &upstreamError{
		status: 400,
		body: map[string]any{
			"errors": []any{
				map[string]any{
					"status":  float64(400),
					"code":    "INVALID_REQUEST_PARAMETER",
					"message": "invalid value for 'state'",
				},
			},
		},
	}

	c := Classify(err, 400)
	if c.Kind != KindValidation {
		t.Errorf("expected kind %q, got %q", KindValidation, c.Kind)
	}
	if c.StatusCode != 400 {
		t.Errorf("expected status 400, got %d", c.StatusCode)
	}
}

func TestClassify_ArrayShapeFirstElementWins(t *testing.T) {
	// Disagreeing elements are not aggregated; only the first is consulted.
	err := &upstreamError{
		status: 400,
		body: map[string]any{
			"errors": []any{
				map[string]any{"status": float64(404), "message": "issue not found"},
				map[string]any{"status": float64(400), "message": "invalid field"},
			},
		},
	}

	c := Classify(err, 400)
	if c.Kind != KindNotFound {
		t.Errorf("expected kind %q (first element), got %q", KindNotFound, c.Kind)
	}
	if c.StatusCode != 404 {
		t.Errorf("expected status 404 (first element), got %d", c.StatusCode)
	}
}

func TestClassify_NetworkSubstrings(t *testing.T) {
	cases := []string{
		"dial tcp 10.0.0.1:443: connect: connection refused",
		"Get \"https://api.bitbucket.org\": ECONNREFUSED",
		"lookup api.bitbucket.org: ENOTFOUND",
		"lookup api.bitbucket.org: no such host",
		"Failed to fetch",
		"network error",
		"Network request failed",
	}

	for _, msg := range cases {
		t.Run(msg, func(t *testing.T) {
			// The status code argument is deliberately misleading; textual
			// network evidence must override it.
			c := Classify(errors.New(msg), 404)
			if c.Kind != KindNetwork {
				t.Errorf("expected kind %q, got %q", KindNetwork, c.Kind)
			}
			if c.StatusCode != 500 {
				t.Errorf("expected status forced to 500, got %d", c.StatusCode)
			}
		})
	}
}

func TestClassify_TextEvidenceWithoutStatus(t *testing.T) {
	tests := []struct {
		msg  string
		want Kind
	}{
		{"the requested resource was not found", KindNotFound},
		{"access denied for this workspace", KindAccessDenied},
		{"forbidden", KindAccessDenied},
		{"you lack permission to merge", KindAccessDenied},
		{"invalid pull request state", KindValidation},
		{"validation failed for field title", KindValidation},
		{"rate limit exceeded", KindRateLimit},
		{"too many requests", KindRateLimit},
		{"something inexplicable happened", KindUnknown},
	}

	for _, tt := range tests {
		c := Classify(errors.New(tt.msg), 0)
		if c.Kind != tt.want {
			t.Errorf("Classify(%q): expected kind %q, got %q", tt.msg, tt.want, c.Kind)
		}
		if c.StatusCode != 500 {
			t.Errorf("Classify(%q): expected defaulted status 500, got %d", tt.msg, c.StatusCode)
		}
	}
}

func TestClassify_StatusOnly(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{404, KindNotFound},
		{403, KindAccessDenied},
		{401, KindAccessDenied},
		{400, KindValidation},
		{429, KindRateLimit},
		{500, KindUnknown},
		{502, KindUnknown},
	}

	for _, tt := range tests {
		c := Classify(errors.New("upstream failure"), tt.status)
		if c.Kind != tt.want {
			t.Errorf("status %d: expected kind %q, got %q", tt.status, tt.want, c.Kind)
		}
		if c.StatusCode != tt.status {
			t.Errorf("status %d: expected echo, got %d", tt.status, c.StatusCode)
		}
	}
}

func TestClassify_NilError(t *testing.T) {
	c := Classify(nil, 0)
	if c.Kind != KindUnknown {
		t.Errorf("expected kind %q, got %q", KindUnknown, c.Kind)
	}
	if c.StatusCode != 500 {
		t.Errorf("expected status 500, got %d", c.StatusCode)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	err := &upstreamError{
		status: 429,
		body:   map[string]any{"type": "error", "message": "Rate limit for this resource has been exceeded"},
	}

	first := Classify(err, 429)
	second := Classify(err, 429)
	if first != second {
		t.Errorf("classification is not idempotent: %+v vs %+v", first, second)
	}
}

func TestClassify_UnrecognizedBodyShape(t *testing.T) {
	err := &upstreamError{
		status: 503,
		body:   map[string]any{"weird": []any{1, 2, 3}, "nested": map[string]any{"x": true}},
	}

	c := Classify(err, 503)
	if c.Kind != KindUnknown {
		t.Errorf("expected kind %q, got %q", KindUnknown, c.Kind)
	}
	if c.StatusCode != 503 {
		t.Errorf("expected status 503, got %d", c.StatusCode)
	}
}

func TestWrap_MessageAndFields(t *testing.T) {
	cause := &upstreamError{
		status: 404,
		body: map[string]any{
			"type":    "error",
			"status":  float64(404),
			"message": "Repository my-repo not found",
		},
	}

	env := Wrap(cause, Context{
		EntityType: "repository",
		Operation:  "get",
		Source:     "bitbucket.GetRepository",
		AdditionalInfo: map[string]any{
			"workspace": "acme",
			"repo":      "my-repo",
		},
	})

	if env == nil {
		t.Fatal("Wrap returned nil")
	}
	if env.Kind != KindNotFound {
		t.Errorf("expected kind %q, got %q", KindNotFound, env.Kind)
	}
	if env.HTTPStatus != 404 {
		t.Errorf("expected status 404, got %d", env.HTTPStatus)
	}
	want := "failed to get repository: Repository my-repo not found"
	if env.Message != want {
		t.Errorf("expected message %q, got %q", want, env.Message)
	}
	if env.Source != "bitbucket.GetRepository" {
		t.Errorf("unexpected source %q", env.Source)
	}
	if !errors.Is(env, cause) {
		t.Error("expected envelope to wrap the original cause")
	}
}

func TestWrap_PlainError(t *testing.T) {
	env := Wrap(errors.New("dial tcp: connection refused"), Context{
		EntityType: "workspaces",
		Operation:  "list",
		Source:     "bitbucket.ListWorkspaces",
	})

	if env.Kind != KindNetwork {
		t.Errorf("expected kind %q, got %q", KindNetwork, env.Kind)
	}
	if env.HTTPStatus != 500 {
		t.Errorf("expected status 500, got %d", env.HTTPStatus)
	}
	if !strings.Contains(env.Message, "failed to list workspaces") {
		t.Errorf("expected operation context in message, got %q", env.Message)
	}
}

func TestWrap_ErrorsAsRoundTrip(t *testing.T) {
	env := Wrap(errors.New("boom"), Context{EntityType: "commit", Operation: "list", Source: "t"})

	wrapped := fmt.Errorf("outer: %w", env)
	var got *Error
	if !errors.As(wrapped, &got) {
		t.Fatal("expected errors.As to find the envelope")
	}
	if got.Kind != KindUnknown {
		t.Errorf("expected kind %q, got %q", KindUnknown, got.Kind)
	}
}
