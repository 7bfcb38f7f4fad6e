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

	"github.com/shurcooL/graphql"
)

// InfoClient runs small typed queries that are not part of the traversal,
// such as the repository total used for progress reporting.
type InfoClient struct {
	client *graphql.Client
}

// NewInfoClient creates a typed GraphQL client for endpoint. httpClient must
// already carry the credential, see NewHTTPClient.
func NewInfoClient(endpoint string, httpClient *http.Client) *InfoClient {
	if endpoint == "" {
		endpoint = DefaultGraphQLEndpoint
	}
	return &InfoClient{client: graphql.NewClient(endpoint, httpClient)}
}

// GetOrganizationInfo retrieves the organization's repository count.
// It executes a minimal GraphQL query to get just the total count.
func (c *InfoClient) GetOrganizationInfo(ctx context.Context, org string) (*OrganizationInfo, error) {
	var q struct {
		Organization struct {
			Repositories struct {
				TotalCount graphql.Int
			} `graphql:"repositories"`
		} `graphql:"organization(login: $org)"`
	}

	variables := map[string]interface{}{
		"org": graphql.String(org),
	}

	if err := c.client.Query(ctx, &q, variables); err != nil {
		return nil, fmt.Errorf("failed to get organization info for %s: %w", org, err)
	}

	return &OrganizationInfo{
		TotalRepositories: int(q.Organization.Repositories.TotalCount),
	}, nil
}
