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

package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	harvesterrors "github.com/sirseerhq/sirseer-harvest/internal/errors"
	"github.com/sirseerhq/sirseer-harvest/internal/query"
)

// DefaultGraphQLEndpoint is the public GitHub GraphQL endpoint.
const DefaultGraphQLEndpoint = "https://api.github.com/graphql"

// HTTPTransport implements Transport with one POST per request. It performs
// no retries; wrap it in a RetryTransport for that.
type HTTPTransport struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithRequestTimeout bounds every Execute call, independently of the caller's
// context deadline.
func WithRequestTimeout(d time.Duration) TransportOption {
	return func(t *HTTPTransport) {
		t.timeout = d
	}
}

// WithHTTPClient replaces the authenticated client built from the token.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *HTTPTransport) {
		t.httpClient = c
	}
}

// NewHTTPTransport creates a transport for endpoint that authenticates with
// token. An empty endpoint selects the public GitHub API.
func NewHTTPTransport(token, endpoint string, opts ...TransportOption) *HTTPTransport {
	if endpoint == "" {
		endpoint = DefaultGraphQLEndpoint
	}
	t := &HTTPTransport{
		endpoint: endpoint,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.httpClient == nil {
		t.httpClient = NewHTTPClient(token)
	}
	return t
}

// HTTPClient returns the authenticated client so auxiliary queries can share
// its connection pool and credential.
func (t *HTTPTransport) HTTPClient() *http.Client {
	return t.httpClient
}

// Execute implements Transport.
func (t *HTTPTransport) Execute(ctx context.Context, req query.Request) (*Response, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to encode %s request", req.OperationName)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		err = errors.WithMessagef(err, "%s request failed (%s)", req.OperationName, req.Context)
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", harvesterrors.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to read %s response (%s)", req.OperationName, req.Context)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &harvesterrors.TransportError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
			RetryAfter: retryAfter(resp.Header, t.now()),
			Request:    req.Context,
		}
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &harvesterrors.ProtocolShapeError{Path: "body", Detail: err.Error(), Request: req.Context}
	}

	if len(out.Errors) > 0 && !out.hasRoot() {
		qe := &harvesterrors.QueryError{Request: req.Context}
		for _, e := range out.Errors {
			qe.Messages = append(qe.Messages, e.Message)
			if e.Type != "" {
				qe.Types = append(qe.Types, e.Type)
			}
		}
		return nil, qe
	}

	return &out, nil
}

func (r *Response) hasRoot() bool {
	return r.Data != nil && (r.Data.Organization != nil || r.Data.Repository != nil)
}

// errorMessage extracts GitHub's {"message": ...} payload, falling back to the
// raw body trimmed to a readable length.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}

// retryAfter reads Retry-After (seconds or HTTP date) and, for exhausted
// primary rate limits, X-RateLimit-Reset.
func retryAfter(h http.Header, now time.Time) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(v); err == nil && at.After(now) {
			return at.Sub(now)
		}
	}
	if h.Get("X-RateLimit-Remaining") == "0" {
		if reset, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
			if at := time.Unix(reset, 0); at.After(now) {
				return at.Sub(now)
			}
		}
	}
	return 0
}
