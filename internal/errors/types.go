// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RequestContext identifies a single query in flight: which operation ran,
// against which organization and repository, and with which cursors. A nil
// cursor means the first page was requested.
type RequestContext struct {
	Operation    string
	Organization string
	Repository   string
	OuterCursor  *string
	InnerCursor  *string
}

// String renders the context in a form that can be pasted into a bug report.
func (rc RequestContext) String() string {
	parts := []string{"operation=" + rc.Operation}
	if rc.Organization != "" {
		parts = append(parts, "org="+rc.Organization)
	}
	if rc.Repository != "" {
		parts = append(parts, "repo="+rc.Repository)
	}
	parts = append(parts, "outerCursor="+cursorString(rc.OuterCursor))
	parts = append(parts, "innerCursor="+cursorString(rc.InnerCursor))
	return strings.Join(parts, " ")
}

func cursorString(c *string) string {
	if c == nil {
		return "null"
	}
	return fmt.Sprintf("%q", *c)
}

// TransportError is returned when the remote endpoint responds with a
// non-success HTTP status.
type TransportError struct {
	StatusCode int
	Message    string
	// RetryAfter is the server-requested delay, zero when absent.
	RetryAfter time.Duration
	Request    RequestContext
}

func (e *TransportError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s (%s)", e.StatusCode, msg, e.Request)
}

// Unwrap exposes ErrTransport plus the sentinel matching the status code, so
// callers can use errors.Is for exit code mapping.
func (e *TransportError) Unwrap() []error {
	errs := []error{ErrTransport}
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if e.StatusCode == http.StatusForbidden && strings.Contains(strings.ToLower(e.Message), "rate limit") {
			errs = append(errs, ErrRateLimit)
		} else {
			errs = append(errs, ErrInvalidToken)
		}
	case http.StatusNotFound:
		errs = append(errs, ErrOrgNotFound)
	case http.StatusTooManyRequests:
		errs = append(errs, ErrRateLimit)
	}
	return errs
}

// IsRateLimitError reports whether the status indicates throttling.
func (e *TransportError) IsRateLimitError() bool {
	for _, err := range e.Unwrap() {
		if err == ErrRateLimit {
			return true
		}
	}
	return false
}

// IsAuthError reports whether the status indicates bad credentials.
func (e *TransportError) IsAuthError() bool {
	return (e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden) && !e.IsRateLimitError()
}

// ProtocolShapeError is returned when a key the traversal depends on is absent
// from a successful response. Missing optional pull request fields never
// produce this error.
type ProtocolShapeError struct {
	Path string
	// Detail is the decoder's message when the response could not be decoded
	// at all, empty when a required field is simply absent.
	Detail  string
	Request RequestContext
}

func (e *ProtocolShapeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("response %s could not be decoded: %s (%s)", e.Path, e.Detail, e.Request)
	}
	return fmt.Sprintf("response is missing required field %q (%s)", e.Path, e.Request)
}

func (e *ProtocolShapeError) Unwrap() error { return ErrProtocolShape }

// QueryError is returned when the endpoint answers 200 but reports GraphQL
// errors and no usable data.
type QueryError struct {
	Messages []string
	// Types holds the GraphQL error type codes, e.g. RATE_LIMITED or NOT_FOUND.
	Types   []string
	Request RequestContext
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("graphql query failed: %s (%s)", strings.Join(e.Messages, "; "), e.Request)
}

func (e *QueryError) Unwrap() []error {
	errs := []error{ErrQuery}
	for _, t := range e.Types {
		switch t {
		case "RATE_LIMITED":
			errs = append(errs, ErrRateLimit)
		case "NOT_FOUND":
			errs = append(errs, ErrOrgNotFound)
		}
	}
	return errs
}

// IsRateLimitError reports whether GitHub flagged the query as throttled.
func (e *QueryError) IsRateLimitError() bool {
	for _, t := range e.Types {
		if t == "RATE_LIMITED" {
			return true
		}
	}
	return false
}

// ConfigError reports a setting that is out of range or missing. It is raised
// before any network call is made.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// ContextOf returns the request context carried by the first typed error in
// err's chain.
func ContextOf(err error) (RequestContext, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Request, true
	}
	var se *ProtocolShapeError
	if errors.As(err, &se) {
		return se.Request, true
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Request, true
	}
	return RequestContext{}, false
}
