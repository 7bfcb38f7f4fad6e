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
	"net/http"
	"net/url"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v57/github"
)

// DefaultAPIEndpoint is the public GitHub REST endpoint.
const DefaultAPIEndpoint = "https://api.github.com/"

// Budget is the GraphQL rate limit budget reported by the REST API.
type Budget struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Exhausted reports whether no GraphQL points remain in the current window.
func (b Budget) Exhausted() bool {
	return b.Remaining <= 0
}

// RateLimitChecker reads the GraphQL budget before a harvest starts. The
// rate_limit endpoint does not count against the budget itself.
type RateLimitChecker struct {
	client *gogithub.Client
}

// NewRateLimitChecker creates a checker for apiEndpoint. An empty endpoint
// selects the public GitHub API.
func NewRateLimitChecker(apiEndpoint string, httpClient *http.Client) (*RateLimitChecker, error) {
	client := gogithub.NewClient(httpClient)

	if apiEndpoint != "" && apiEndpoint != DefaultAPIEndpoint {
		if !strings.HasSuffix(apiEndpoint, "/") {
			apiEndpoint += "/"
		}
		base, err := url.Parse(apiEndpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid API endpoint %q: %w", apiEndpoint, err)
		}
		client.BaseURL = base
	}

	return &RateLimitChecker{client: client}, nil
}

// GraphQLBudget returns the remaining GraphQL budget.
func (c *RateLimitChecker) GraphQLBudget(ctx context.Context) (Budget, error) {
	limits, _, err := c.client.RateLimit.Get(ctx)
	if err != nil {
		return Budget{}, fmt.Errorf("failed to get rate limit: %w", err)
	}
	if limits == nil || limits.GraphQL == nil {
		return Budget{}, fmt.Errorf("rate limit response has no graphql budget")
	}

	return Budget{
		Limit:     limits.GraphQL.Limit,
		Remaining: limits.GraphQL.Remaining,
		Reset:     limits.GraphQL.Reset.Time,
	}, nil
}
