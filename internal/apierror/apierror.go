// Package apierror normalizes the heterogeneous error payloads returned by
// Bitbucket Cloud and Jira Cloud into a single classified envelope. Upstream
// APIs are inconsistent about whether the diagnostic signal lives in the
// HTTP status code or in free text, so classification checks both, and
// textual evidence is allowed to override a misleading status code.
package apierror

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// Kind identifies the category of a normalized upstream failure.
type Kind string

const (
	KindNotFound     Kind = "NOT_FOUND"
	KindAccessDenied Kind = "ACCESS_DENIED"
	KindValidation   Kind = "VALIDATION_ERROR"
	KindRateLimit    Kind = "RATE_LIMIT_ERROR"
	KindNetwork      Kind = "NETWORK_ERROR"
	KindUnknown      Kind = "UNKNOWN"
)

// Classification is the result of classifying an upstream error. StatusCode
// is always set (500 when the upstream gave none) so callers have a single
// field to check.
type Classification struct {
	Kind       Kind
	StatusCode int
}

// bodyCarrier is implemented by transport errors that retained the decoded
// JSON error payload from the response body.
type bodyCarrier interface {
	ErrorBody() any
}

// statusCarrier is implemented by transport errors that know the HTTP
// status code of the failed response.
type statusCarrier interface {
	HTTPStatus() int
}

// networkSubstrings mark an error as a transport failure regardless of any
// status code present. Network failures can masquerade with misleading
// status codes from intermediate layers, so this check runs first.
var networkSubstrings = []string{
	"econnrefused",
	"enotfound",
	"connection refused",
	"connection reset",
	"no such host",
	"dial tcp",
	"failed to fetch",
	"network error",
	"network request failed",
}

// Classify maps an arbitrary upstream error plus an optional HTTP status
// code (0 when absent) to a Kind. It never panics; an unrecognized shape
// resolves to KindUnknown.
func Classify(err error, statusCode int) Classification {
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	if isNetworkFailure(msg) {
		return Classification{Kind: KindNetwork, StatusCode: http.StatusInternalServerError}
	}

	if statusCode == 0 {
		var sc statusCarrier
		if errors.As(err, &sc) {
			statusCode = sc.HTTPStatus()
		}
	}

	text := msg
	if n, ok := decodeBody(err); ok {
		if n.status != 0 {
			statusCode = n.status
		}
		if n.message != "" {
			text = n.message
		}
	}

	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}

	return Classification{Kind: classifyText(statusCode, text), StatusCode: statusCode}
}

func isNetworkFailure(msg string) bool {
	lower := strings.ToLower(msg)
	for _, s := range networkSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// classifyText applies the status/text precedence rules. Status codes and
// free-text evidence are checked together per rule, first match wins.
func classifyText(status int, text string) Kind {
	lower := strings.ToLower(text)
	switch {
	case status == http.StatusNotFound || strings.Contains(lower, "not found"):
		return KindNotFound
	case status == http.StatusForbidden || status == http.StatusUnauthorized ||
		containsAny(lower, "access denied", "forbidden", "permission"):
		return KindAccessDenied
	case status == http.StatusBadRequest || containsAny(lower, "invalid", "validation"):
		return KindValidation
	case status == http.StatusTooManyRequests || containsAny(lower, "rate limit", "too many requests"):
		return KindRateLimit
	default:
		return KindUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// normalized is the common form the three recognized upstream error body
// shapes decode to. A zero status means the body carried none.
type normalized struct {
	message string
	status  int
}

// decodeBody probes the error chain for a retained response body and
// attempts each known shape in priority order: classic Bitbucket, alternate
// Bitbucket, then the Bitbucket/Jira array form.
func decodeBody(err error) (normalized, bool) {
	var bc bodyCarrier
	if !errors.As(err, &bc) {
		return normalized{}, false
	}
	m, ok := bc.ErrorBody().(map[string]any)
	if !ok {
		return normalized{}, false
	}
	if n, ok := decodeClassic(m); ok {
		return n, true
	}
	if n, ok := decodeAlternate(m); ok {
		return n, true
	}
	if n, ok := decodeArray(m); ok {
		return n, true
	}
	return normalized{}, false
}

// decodeClassic handles { "error": { "message": ..., "detail": ... } }.
func decodeClassic(m map[string]any) (normalized, bool) {
	inner, ok := m["error"].(map[string]any)
	if !ok {
		return normalized{}, false
	}
	msg, _ := inner["message"].(string)
	detail, _ := inner["detail"].(string)
	switch {
	case msg != "" && detail != "":
		return normalized{message: msg + ": " + detail}, true
	case msg != "":
		return normalized{message: msg}, true
	case detail != "":
		return normalized{message: detail}, true
	}
	return normalized{}, false
}

// decodeAlternate handles { "type": "error", "status": ..., "message": ... }.
// A status present in the body overrides the transport status code.
func decodeAlternate(m map[string]any) (normalized, bool) {
	if t, _ := m["type"].(string); t != "error" {
		return normalized{}, false
	}
	n := normalized{}
	n.message, _ = m["message"].(string)
	n.status = asInt(m["status"])
	if n.message == "" && n.status == 0 {
		return normalized{}, false
	}
	return n, true
}

// decodeArray handles { "errors": [ { "status", "code", "title", "message" }, ... ] }.
// Only the first element is consulted; when elements disagree the rest are
// deliberately ignored rather than aggregated.
func decodeArray(m map[string]any) (normalized, bool) {
	arr, ok := m["errors"].([]any)
	if !ok || len(arr) == 0 {
		return normalized{}, false
	}
	first, ok := arr[0].(map[string]any)
	if !ok {
		return normalized{}, false
	}
	n := normalized{status: asInt(first["status"])}
	for _, key := range []string{"message", "title", "code"} {
		if v, _ := first[key].(string); v != "" {
			n.message = v
			break
		}
	}
	if n.message == "" && n.status == 0 {
		return normalized{}, false
	}
	return n, true
}

// asInt coerces the numeric encodings seen in upstream payloads: JSON
// numbers decode to float64, Jira occasionally sends the status as a string.
func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return 0
}

// Context describes the operation that was being attempted when an upstream
// call failed. Source and AdditionalInfo are for logging only.
type Context struct {
	EntityType     string
	Operation      string
	Source         string
	AdditionalInfo map[string]any
}

// Error is the uniform envelope returned to callers for every upstream
// failure. It is immutable once built; the original cause is preserved for
// diagnostics and reachable via errors.Unwrap, but never inspected again
// downstream.
type Error struct {
	Kind       Kind
	HTTPStatus int
	Message    string
	Cause      error
	Source     string
	Info       map[string]any
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

// Wrap classifies err and builds the envelope for it. It never returns nil
// and never panics; the only side effect is a debug log line recording the
// classification.
func Wrap(err error, ctx Context) *Error {
	c := Classify(err, 0)

	reason := string(c.Kind)
	if n, ok := decodeBody(err); ok && n.message != "" {
		reason = n.message
	} else if err != nil && err.Error() != "" {
		reason = err.Error()
	}

	msg := fmt.Sprintf("failed to %s %s: %s", ctx.Operation, ctx.EntityType, reason)

	slog.Debug("classified upstream error",
		"kind", string(c.Kind),
		"status", c.StatusCode,
		"entity", ctx.EntityType,
		"operation", ctx.Operation,
		"source", ctx.Source,
	)

	return &Error{
		Kind:       c.Kind,
		HTTPStatus: c.StatusCode,
		Message:    msg,
		Cause:      err,
		Source:     ctx.Source,
		Info:       ctx.AdditionalInfo,
	}
}
