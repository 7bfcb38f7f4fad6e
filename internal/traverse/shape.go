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

package traverse

import (
	"fmt"

	harvesterrors "github.com/sirseerhq/sirseer-harvest/internal/errors"
	"github.com/sirseerhq/sirseer-harvest/internal/github"
	"github.com/sirseerhq/sirseer-harvest/internal/query"
)

// The helpers below pull the connections the traversal depends on out of a
// response. A missing connection or pageInfo is a ProtocolShapeError; a
// missing nodes list is read as an empty page.

func repositories(resp *github.Response, rc harvesterrors.RequestContext) (*github.RepositoryConnection, error) {
	switch {
	case resp == nil || resp.Data == nil:
		return nil, &harvesterrors.ProtocolShapeError{Path: "data", Request: rc}
	case resp.Data.Organization == nil:
		return nil, &harvesterrors.ProtocolShapeError{Path: "data.organization", Request: rc}
	case resp.Data.Organization.Repositories == nil:
		return nil, &harvesterrors.ProtocolShapeError{Path: "data.organization.repositories", Request: rc}
	}
	return resp.Data.Organization.Repositories, nil
}

func pullRequests(resp *github.Response, rc harvesterrors.RequestContext) (*github.PullRequestConnection, error) {
	switch {
	case resp == nil || resp.Data == nil:
		return nil, &harvesterrors.ProtocolShapeError{Path: "data", Request: rc}
	case resp.Data.Repository == nil:
		return nil, &harvesterrors.ProtocolShapeError{Path: "data.repository", Request: rc}
	case resp.Data.Repository.PullRequests == nil:
		return nil, &harvesterrors.ProtocolShapeError{Path: "data.repository.pullRequests", Request: rc}
	}
	return resp.Data.Repository.PullRequests, nil
}

func seedOf(node *github.Repository, i int, outer query.Cursor, rc harvesterrors.RequestContext) (seed, error) {
	path := fmt.Sprintf("data.organization.repositories.nodes[%d]", i)
	if node.Name == nil {
		return seed{}, &harvesterrors.ProtocolShapeError{Path: path + ".name", Request: rc}
	}
	if node.PullRequests == nil {
		return seed{}, &harvesterrors.ProtocolShapeError{Path: path + ".pullRequests", Request: rc}
	}

	rc.Repository = *node.Name
	return seed{
		name:    *node.Name,
		prs:     node.PullRequests,
		path:    path + ".pullRequests",
		outer:   outer,
		request: rc,
	}, nil
}

// pageOf reads pageInfo. hasNextPage must be present, and a page claiming a
// successor must carry the cursor that fetches it.
func pageOf(info *github.PageInfo, path string, rc harvesterrors.RequestContext) (query.Page, error) {
	if info == nil {
		return query.Page{}, &harvesterrors.ProtocolShapeError{Path: path, Request: rc}
	}
	if info.HasNextPage == nil {
		return query.Page{}, &harvesterrors.ProtocolShapeError{Path: path + ".hasNextPage", Request: rc}
	}
	if !*info.HasNextPage {
		return query.Page{}, nil
	}
	if info.EndCursor == nil {
		return query.Page{}, &harvesterrors.ProtocolShapeError{Path: path + ".endCursor", Request: rc}
	}
	return query.Page{HasNext: true, Next: query.After(*info.EndCursor)}, nil
}
