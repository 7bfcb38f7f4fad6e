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

package query

import (
	"strings"
	"text/template"
)

// Operation names inside the shared document.
const (
	OperationOrganization = "orgLevel"
	OperationRepository   = "repoLevel"
)

// PullRequestFields lists the pull request selections requested on every page.
// Normalization tolerates any of them being absent in a response.
var PullRequestFields = []string{
	"id",
	"url",
	"title",
	"number",
	"state",
	"additions",
	"changedFiles",
	"deletions",
	"activeLockReason",
	"closed",
	"closedAt",
	"createdAt",
	"lastEditedAt",
	"locked",
	"merged",
	"mergeable",
	"mergedAt",
	"publishedAt",
	"repository { name }",
	"updatedAt",
	"bodyText",
	"author { login }",
}

const documentTemplate = `query {{.OrgOp}}($org: String!, $pageSize: Int!, $outerCursor: String) {
  organization(login: $org) {
    name
    repositories(first: $pageSize, after: $outerCursor) {
      nodes {
        id
        name
        pullRequests(first: $pageSize) {
          nodes {
            ...pullRequestFields
          }
          ...pullConnection
        }
      }
      ...repoConnection
    }
  }
}

query {{.RepoOp}}($org: String!, $repoName: String!, $pageSize: Int!, $innerCursor: String) {
  repository(owner: $org, name: $repoName) {
    id
    name
    pullRequests(first: $pageSize, after: $innerCursor) {
      nodes {
        ...pullRequestFields
      }
      ...pullConnection
    }
  }
}

fragment pullConnection on PullRequestConnection {
  totalCount
  pageInfo {
    endCursor
    hasNextPage
  }
}

fragment repoConnection on RepositoryConnection {
  totalCount
  pageInfo {
    endCursor
    hasNextPage
  }
}

fragment pullRequestFields on PullRequest {
{{- range .Fields}}
  {{.}}
{{- end}}
}
`

var tmpl = template.Must(template.New("document").Parse(documentTemplate))

// renderDocument produces the request document holding both operations and
// the three fragments.
func renderDocument(fields []string) (string, error) {
	var b strings.Builder
	err := tmpl.Execute(&b, struct {
		OrgOp  string
		RepoOp string
		Fields []string
	}{
		OrgOp:  OperationOrganization,
		RepoOp: OperationRepository,
		Fields: fields,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
