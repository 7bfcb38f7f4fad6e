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
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirseerhq/sirseer-harvest/internal/query"
)

// MockTransport is a scripted Transport for testing. Responses are keyed by
// operation, repository and cursor, so a request carrying the wrong cursor
// finds no script and fails loudly.
type MockTransport struct {
	mu sync.Mutex

	orgPages  map[string]*Response
	repoPages map[string]*Response
	failures  map[string]map[int]error
	latency   time.Duration

	// Track calls for verification
	requests []query.Request
	calls    map[string]int
}

// MockOption allows configuring the mock transport
type MockOption func(*MockTransport)

// WithOrganizationPage scripts the orgLevel response for outer.
func WithOrganizationPage(outer query.Cursor, resp *Response) MockOption {
	return func(m *MockTransport) {
		m.orgPages[outer.String()] = resp
	}
}

// WithRepositoryPage scripts the repoLevel response for repo at inner.
func WithRepositoryPage(repo string, inner query.Cursor, resp *Response) MockOption {
	return func(m *MockTransport) {
		m.repoPages[repoKey(repo, inner.String())] = resp
	}
}

// WithFailure makes the nth call (1-based) of operation return err.
func WithFailure(operation string, n int, err error) MockOption {
	return func(m *MockTransport) {
		if m.failures[operation] == nil {
			m.failures[operation] = make(map[int]error)
		}
		m.failures[operation][n] = err
	}
}

// WithLatency delays every call, honoring context cancellation.
func WithLatency(d time.Duration) MockOption {
	return func(m *MockTransport) {
		m.latency = d
	}
}

// NewMockTransport creates a mock transport with options
func NewMockTransport(opts ...MockOption) *MockTransport {
	m := &MockTransport{
		orgPages:  make(map[string]*Response),
		repoPages: make(map[string]*Response),
		failures:  make(map[string]map[int]error),
		calls:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Execute implements Transport
func (m *MockTransport) Execute(ctx context.Context, req query.Request) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.calls[req.OperationName]++
	n := m.calls[req.OperationName]
	failure := m.failures[req.OperationName][n]
	latency := m.latency
	m.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	// Check for context cancellation
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if failure != nil {
		return nil, failure
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch req.OperationName {
	case query.OperationOrganization:
		key := cursorKey(req.Context.OuterCursor)
		if resp, ok := m.orgPages[key]; ok {
			return resp, nil
		}
		return nil, fmt.Errorf("no scripted %s response for outer cursor %s", req.OperationName, key)
	case query.OperationRepository:
		key := repoKey(req.Context.Repository, cursorKey(req.Context.InnerCursor))
		if resp, ok := m.repoPages[key]; ok {
			return resp, nil
		}
		return nil, fmt.Errorf("no scripted %s response for %s", req.OperationName, key)
	default:
		return nil, fmt.Errorf("unknown operation %q", req.OperationName)
	}
}

// Requests returns a copy of every request received, in arrival order.
func (m *MockTransport) Requests() []query.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]query.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns how many times operation was executed.
func (m *MockTransport) Calls(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[operation]
}

func cursorKey(c *string) string {
	if c == nil {
		return query.Start.String()
	}
	return query.After(*c).String()
}

func repoKey(repo, cursor string) string {
	return repo + "@" + cursor
}

// NewPullRequestNode builds a node with only the fields most tests care about.
func NewPullRequestNode(id, title string) *PullRequestNode {
	return &PullRequestNode{ID: ptr(id), Title: ptr(title)}
}

// NewPullRequestPage builds a pull request connection. An empty endCursor
// is sent as null.
func NewPullRequestPage(hasNext bool, endCursor string, nodes ...*PullRequestNode) *PullRequestConnection {
	if nodes == nil {
		nodes = []*PullRequestNode{}
	}
	return &PullRequestConnection{
		Nodes:    nodes,
		PageInfo: newPageInfo(hasNext, endCursor),
	}
}

// NewRepositoryNode builds a repository node carrying its first pull request page.
func NewRepositoryNode(name string, prs *PullRequestConnection) *Repository {
	return &Repository{
		ID:           ptr("R_" + name),
		Name:         ptr(name),
		PullRequests: prs,
	}
}

// NewOrganizationResponse builds an orgLevel response.
func NewOrganizationResponse(org string, hasNext bool, endCursor string, repos ...*Repository) *Response {
	if repos == nil {
		repos = []*Repository{}
	}
	return &Response{Data: &ResponseData{Organization: &Organization{
		Name: ptr(org),
		Repositories: &RepositoryConnection{
			Nodes:    repos,
			PageInfo: newPageInfo(hasNext, endCursor),
		},
	}}}
}

// NewRepositoryResponse builds a repoLevel response.
func NewRepositoryResponse(name string, prs *PullRequestConnection) *Response {
	return &Response{Data: &ResponseData{Repository: NewRepositoryNode(name, prs)}}
}

func newPageInfo(hasNext bool, endCursor string) *PageInfo {
	info := &PageInfo{HasNextPage: ptr(hasNext)}
	if endCursor != "" {
		info.EndCursor = ptr(endCursor)
	}
	return info
}

func ptr[T any](v T) *T {
	return &v
}
