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

// Package testutil provides common test helpers for sirseer-harvest
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Operation names as they appear in the request body. Info is the typed
// repository-count query, which carries no operation name.
const (
	OpOrganization = "orgLevel"
	OpRepository   = "repoLevel"
	OpInfo         = "info"
)

// GraphQLRequest represents a parsed GraphQL request
type GraphQLRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
	Authorization string                 `json:"-"`
	Timestamp     time.Time              `json:"-"`
}

// Operation returns the request's operation, OpInfo for unnamed queries.
func (r GraphQLRequest) Operation() string {
	if r.OperationName == "" {
		return OpInfo
	}
	return r.OperationName
}

// Failure describes a scripted error response.
type Failure struct {
	Status     int
	Message    string
	RetryAfter int
	// Errors, when set, produces a 200 response carrying only GraphQL errors.
	Errors []map[string]interface{}
}

// GraphQLServer serves one organization's repositories and pull requests the
// way GitHub's GraphQL API paginates them: orgLevel returns a page of
// repositories with the first page of each one's pull requests attached, and
// repoLevel continues a single repository from its own cursor. Cursors are
// opaque to clients but readable in test failures.
type GraphQLServer struct {
	*httptest.Server

	mu       sync.Mutex
	t        *testing.T
	org      string
	repos    []Repository
	byName   map[string]int
	failures map[string]map[int]Failure
	failRepo map[string]Failure
	calls    map[string]int
	requests []GraphQLRequest
	token    string
	delay    time.Duration

	budgetLimit     int
	budgetRemaining int
	budgetReset     time.Time
}

// ServerOption configures a GraphQLServer
type ServerOption func(*GraphQLServer)

// WithRepositories sets the repositories the organization owns
func WithRepositories(repos ...Repository) ServerOption {
	return func(s *GraphQLServer) {
		s.repos = append(s.repos, repos...)
	}
}

// WithFailure makes the n-th call (1-based) of op fail
func WithFailure(op string, n int, f Failure) ServerOption {
	return func(s *GraphQLServer) {
		if s.failures[op] == nil {
			s.failures[op] = make(map[int]Failure)
		}
		s.failures[op][n] = f
	}
}

// WithRepositoryFailure makes every repoLevel call for repo fail
func WithRepositoryFailure(repo string, f Failure) ServerOption {
	return func(s *GraphQLServer) {
		s.failRepo[repo] = f
	}
}

// WithToken requires an exact bearer token instead of any token
func WithToken(token string) ServerOption {
	return func(s *GraphQLServer) {
		s.token = token
	}
}

// WithDelay delays every GraphQL response
func WithDelay(d time.Duration) ServerOption {
	return func(s *GraphQLServer) {
		s.delay = d
	}
}

// WithRateLimit sets the GraphQL budget reported by /rate_limit
func WithRateLimit(remaining int, reset time.Time) ServerOption {
	return func(s *GraphQLServer) {
		s.budgetRemaining = remaining
		s.budgetReset = reset
	}
}

// NewGraphQLServer starts a mock GitHub API for org. It is closed when the
// test ends.
func NewGraphQLServer(t *testing.T, org string, opts ...ServerOption) *GraphQLServer {
	t.Helper()

	s := &GraphQLServer{
		t:               t,
		org:             org,
		byName:          make(map[string]int),
		failures:        make(map[string]map[int]Failure),
		failRepo:        make(map[string]Failure),
		calls:           make(map[string]int),
		budgetLimit:     5000,
		budgetRemaining: 5000,
		budgetReset:     time.Now().Add(time.Hour),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i, r := range s.repos {
		s.byName[r.Name] = i
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", s.handleGraphQL)
	mux.HandleFunc("/rate_limit", s.handleRateLimit)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)

	return s
}

// GraphQLEndpoint returns the URL to configure as github.graphql_endpoint
func (s *GraphQLServer) GraphQLEndpoint() string {
	return s.URL + "/graphql"
}

// APIEndpoint returns the URL to configure as github.api_endpoint
func (s *GraphQLServer) APIEndpoint() string {
	return s.URL + "/"
}

// Calls returns how many requests of op were received
func (s *GraphQLServer) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Requests returns a copy of every GraphQL request received, in order
func (s *GraphQLServer) Requests() []GraphQLRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]GraphQLRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// TotalPullRequests returns the number of PR nodes across all repositories
func (s *GraphQLServer) TotalPullRequests() int {
	n := 0
	for _, r := range s.repos {
		n += len(r.PullRequests)
	}
	return n
}

func (s *GraphQLServer) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") || (s.token != "" && auth != "Bearer "+s.token) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"message":           "Bad credentials",
			"documentation_url": "https://docs.github.com/graphql",
		})
		return
	}

	var req GraphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"message": "Problems parsing JSON"})
		return
	}
	req.Authorization = auth
	req.Timestamp = time.Now()
	op := req.Operation()

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.calls[op]++
	n := s.calls[op]
	failure, failing := s.failures[op][n]
	if !failing && op == OpRepository {
		failure, failing = s.failRepo[stringVar(req.Variables, "repoName")]
	}
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if failing {
		writeFailure(w, failure)
		return
	}

	switch op {
	case OpOrganization:
		s.serveOrganization(w, req)
	case OpRepository:
		s.serveRepository(w, req)
	default:
		s.serveInfo(w, req)
	}
}

func (s *GraphQLServer) serveOrganization(w http.ResponseWriter, req GraphQLRequest) {
	org := stringVar(req.Variables, "org")
	if org != s.org {
		writeNotFound(w, "organization", fmt.Sprintf("Could not resolve to an Organization with the login of '%s'.", org))
		return
	}

	pageSize := intVar(req.Variables, "pageSize")
	start := offset(req.Variables, "outerCursor")
	end := min(start+pageSize, len(s.repos))
	if start > end {
		start = end
	}

	nodes := make([]interface{}, 0, end-start)
	for _, repo := range s.repos[start:end] {
		nodes = append(nodes, map[string]interface{}{
			"id":           "R_" + repo.Name,
			"name":         repo.Name,
			"pullRequests": pullRequestPage(repo, 0, pageSize),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"organization": map[string]interface{}{
				"name": s.org,
				"repositories": map[string]interface{}{
					"nodes":      nodes,
					"pageInfo":   pageInfo("repos", start, end, len(s.repos)),
					"totalCount": len(s.repos),
				},
			},
		},
	})
}

func (s *GraphQLServer) serveRepository(w http.ResponseWriter, req GraphQLRequest) {
	name := stringVar(req.Variables, "repoName")
	i, ok := s.byName[name]
	if !ok || stringVar(req.Variables, "org") != s.org {
		writeNotFound(w, "repository", fmt.Sprintf("Could not resolve to a Repository with the name '%s/%s'.", s.org, name))
		return
	}
	repo := s.repos[i]

	pageSize := intVar(req.Variables, "pageSize")
	start := offset(req.Variables, "innerCursor")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"repository": map[string]interface{}{
				"id":           "R_" + repo.Name,
				"name":         repo.Name,
				"pullRequests": pullRequestPage(repo, start, pageSize),
			},
		},
	})
}

func (s *GraphQLServer) serveInfo(w http.ResponseWriter, req GraphQLRequest) {
	if stringVar(req.Variables, "org") != s.org {
		writeNotFound(w, "organization", "Could not resolve to an Organization.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"organization": map[string]interface{}{
				"repositories": map[string]interface{}{
					"totalCount": len(s.repos),
				},
			},
		},
	})
}

func (s *GraphQLServer) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	graphql := map[string]interface{}{
		"limit":     s.budgetLimit,
		"remaining": s.budgetRemaining,
		"reset":     s.budgetReset.Unix(),
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resources": map[string]interface{}{
			"core":    map[string]interface{}{"limit": 5000, "remaining": 5000, "reset": time.Now().Add(time.Hour).Unix()},
			"graphql": graphql,
		},
	})
}

func pullRequestPage(repo Repository, start, pageSize int) map[string]interface{} {
	end := min(start+pageSize, len(repo.PullRequests))
	if start > end {
		start = end
	}
	nodes := make([]interface{}, 0, end-start)
	for _, pr := range repo.PullRequests[start:end] {
		nodes = append(nodes, pr)
	}
	return map[string]interface{}{
		"nodes":      nodes,
		"pageInfo":   pageInfo(repo.Name, start, end, len(repo.PullRequests)),
		"totalCount": len(repo.PullRequests),
	}
}

// pageInfo encodes the next offset into the cursor as "<scope>:<offset>".
func pageInfo(scope string, start, end, total int) map[string]interface{} {
	var cursor interface{}
	if end > start {
		cursor = fmt.Sprintf("%s:%d", scope, end)
	}
	return map[string]interface{}{
		"hasNextPage": end < total,
		"endCursor":   cursor,
	}
}

func offset(vars map[string]interface{}, key string) int {
	cursor := stringVar(vars, key)
	if cursor == "" {
		return 0
	}
	i := strings.LastIndex(cursor, ":")
	n, err := strconv.Atoi(cursor[i+1:])
	if err != nil {
		return 0
	}
	return n
}

func stringVar(vars map[string]interface{}, key string) string {
	s, _ := vars[key].(string)
	return s
}

func intVar(vars map[string]interface{}, key string) int {
	if f, ok := vars[key].(float64); ok && f > 0 {
		return int(f)
	}
	return 100
}

func writeFailure(w http.ResponseWriter, f Failure) {
	if len(f.Errors) > 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": nil, "errors": f.Errors})
		return
	}
	if f.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(f.RetryAfter))
	}
	msg := f.Message
	if msg == "" {
		msg = http.StatusText(f.Status)
	}
	writeJSON(w, f.Status, map[string]interface{}{"message": msg})
}

func writeNotFound(w http.ResponseWriter, root, message string) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{root: nil},
		"errors": []map[string]interface{}{
			{"type": "NOT_FOUND", "message": message, "path": []string{root}},
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
