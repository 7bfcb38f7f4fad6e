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

// Package query builds the GraphQL requests used to walk an organization's
// repositories and their pull requests. Every request carries the same
// document with two named operations; the operation name and the variables
// select which one runs and from which position.
package query

import (
	"fmt"
	"strings"

	harvesterrors "github.com/sirseerhq/sirseer-harvest/internal/errors"
)

// MaxPageSize is the largest "first" argument GitHub accepts on a connection.
const MaxPageSize = 100

// Request is a single GraphQL request ready to be encoded as the POST body.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`

	// Context describes the request for error reporting. It is not sent.
	Context harvesterrors.RequestContext `json:"-"`
}

// Params are the named inputs of a request. An empty RepoName selects the
// organization-level operation.
type Params struct {
	RepoName    string
	OuterCursor Cursor
	InnerCursor Cursor
}

// Builder produces requests for one organization and page size. It holds no
// mutable state and is safe for concurrent use.
type Builder struct {
	org      string
	pageSize int
	document string
}

// NewBuilder validates the organization and page size and renders the shared
// document. Invalid input is a configuration error, reported before any
// request is built.
func NewBuilder(org string, pageSize int) (*Builder, error) {
	if strings.TrimSpace(org) == "" {
		return nil, &harvesterrors.ConfigError{Field: "organization", Reason: "must not be empty"}
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, &harvesterrors.ConfigError{
			Field:  "page_size",
			Reason: fmt.Sprintf("must be between 1 and %d, got %d", MaxPageSize, pageSize),
		}
	}

	doc, err := renderDocument(PullRequestFields)
	if err != nil {
		return nil, fmt.Errorf("failed to render query document: %w", err)
	}

	return &Builder{org: org, pageSize: pageSize, document: doc}, nil
}

// Organization returns the organization login the builder targets.
func (b *Builder) Organization() string { return b.org }

// PageSize returns the validated page size.
func (b *Builder) PageSize() int { return b.pageSize }

// Document returns the request document shared by every request.
func (b *Builder) Document() string { return b.document }

// Build maps params to a request. Only the variables declared by the selected
// operation are included.
func (b *Builder) Build(p Params) Request {
	if p.RepoName == "" {
		return b.OrganizationPage(p.OuterCursor)
	}
	return b.RepositoryPage(p.RepoName, p.InnerCursor)
}

// OrganizationPage builds the orgLevel request for the repositories page
// following outer.
func (b *Builder) OrganizationPage(outer Cursor) Request {
	return Request{
		Query:         b.document,
		OperationName: OperationOrganization,
		Variables: map[string]any{
			"org":         b.org,
			"pageSize":    b.pageSize,
			"outerCursor": outer.variable(),
		},
		Context: harvesterrors.RequestContext{
			Operation:    OperationOrganization,
			Organization: b.org,
			OuterCursor:  outer.Ptr(),
		},
	}
}

// RepositoryPage builds the repoLevel request for the pull request page of
// repo following inner.
func (b *Builder) RepositoryPage(repo string, inner Cursor) Request {
	return Request{
		Query:         b.document,
		OperationName: OperationRepository,
		Variables: map[string]any{
			"org":         b.org,
			"repoName":    repo,
			"pageSize":    b.pageSize,
			"innerCursor": inner.variable(),
		},
		Context: harvesterrors.RequestContext{
			Operation:    OperationRepository,
			Organization: b.org,
			Repository:   repo,
			InnerCursor:  inner.Ptr(),
		},
	}
}
