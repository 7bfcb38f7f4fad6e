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

// Response is the decoded body of a GraphQL response. Pointer fields are nil
// when the key was absent or null, which lets callers tell a missing
// connection apart from an empty one.
type Response struct {
	Data   *ResponseData  `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// GraphQLError is one entry of the top-level "errors" array.
type GraphQLError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Path    []any  `json:"path,omitempty"`
}

// ResponseData holds the root fields of both operations. Only one of them is
// populated, depending on the operation that ran.
type ResponseData struct {
	Organization *Organization `json:"organization"`
	Repository   *Repository   `json:"repository"`
}

// Organization is the orgLevel root.
type Organization struct {
	Name         *string               `json:"name"`
	Repositories *RepositoryConnection `json:"repositories"`
}

// RepositoryConnection is one page of an organization's repositories.
type RepositoryConnection struct {
	Nodes      []*Repository `json:"nodes"`
	PageInfo   *PageInfo     `json:"pageInfo"`
	TotalCount *int          `json:"totalCount"`
}

// Repository is a container node. On the orgLevel operation it arrives with
// the first page of its pull requests already attached.
type Repository struct {
	ID           *string                `json:"id"`
	Name         *string                `json:"name"`
	PullRequests *PullRequestConnection `json:"pullRequests"`
}

// PullRequestConnection is one page of a repository's pull requests.
type PullRequestConnection struct {
	Nodes      []*PullRequestNode `json:"nodes"`
	PageInfo   *PageInfo          `json:"pageInfo"`
	TotalCount *int               `json:"totalCount"`
}

// PageInfo carries the pagination state of a connection. HasNextPage is the
// only signal used for loop control; TotalCount is informational.
type PageInfo struct {
	EndCursor   *string `json:"endCursor"`
	HasNextPage *bool   `json:"hasNextPage"`
}

// PullRequestNode is a pull request exactly as it came over the wire. Every
// field except ID is optional, and timestamps stay as strings until
// normalization so a malformed value cannot fail the decode of a whole page.
type PullRequestNode struct {
	ID               *string   `json:"id"`
	URL              *string   `json:"url"`
	Title            *string   `json:"title"`
	Number           *int      `json:"number"`
	State            *string   `json:"state"`
	Additions        *int      `json:"additions"`
	ChangedFiles     *int      `json:"changedFiles"`
	Deletions        *int      `json:"deletions"`
	ActiveLockReason *string   `json:"activeLockReason"`
	Closed           *bool     `json:"closed"`
	ClosedAt         *string   `json:"closedAt"`
	CreatedAt        *string   `json:"createdAt"`
	LastEditedAt     *string   `json:"lastEditedAt"`
	Locked           *bool     `json:"locked"`
	Merged           *bool     `json:"merged"`
	Mergeable        *string   `json:"mergeable"`
	MergedAt         *string   `json:"mergedAt"`
	PublishedAt      *string   `json:"publishedAt"`
	Repository       *NameRef  `json:"repository"`
	UpdatedAt        *string   `json:"updatedAt"`
	BodyText         *string   `json:"bodyText"`
	Author           *LoginRef `json:"author"`
}

// NameRef is a nested object selected only for its name.
type NameRef struct {
	Name *string `json:"name"`
}

// LoginRef is an actor selected only for its login.
type LoginRef struct {
	Login *string `json:"login"`
}

// OrganizationInfo contains basic organization metadata.
// Used for progress reporting only.
type OrganizationInfo struct {
	TotalRepositories int
}
