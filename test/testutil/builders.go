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

package testutil

import (
	"fmt"
	"time"
)

// PullRequestBuilder provides a fluent API for creating test PR nodes shaped
// like the pullRequestFields fragment.
type PullRequestBuilder struct {
	id           string
	number       int
	title        string
	state        string
	body         string
	author       string
	repository   string
	createdAt    time.Time
	updatedAt    time.Time
	mergedAt     *time.Time
	closedAt     *time.Time
	additions    int
	deletions    int
	changedFiles int
	mergeable    string
	locked       bool
	minimal      bool
}

// NewPullRequestBuilder creates a new PR builder with defaults
func NewPullRequestBuilder(repository string, number int) *PullRequestBuilder {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, number)
	return &PullRequestBuilder{
		id:           fmt.Sprintf("PR_%s_%d", repository, number),
		number:       number,
		title:        fmt.Sprintf("PR %d", number),
		state:        "OPEN",
		body:         fmt.Sprintf("This is the body of PR %d", number),
		author:       fmt.Sprintf("user%d", number),
		repository:   repository,
		createdAt:    created,
		updatedAt:    created.Add(time.Hour),
		additions:    10,
		deletions:    5,
		changedFiles: 2,
		mergeable:    "MERGEABLE",
	}
}

// WithID overrides the node ID, e.g. to reproduce a PR reported twice
func (b *PullRequestBuilder) WithID(id string) *PullRequestBuilder {
	b.id = id
	return b
}

// WithTitle sets the PR title
func (b *PullRequestBuilder) WithTitle(title string) *PullRequestBuilder {
	b.title = title
	return b
}

// WithState sets the PR state (OPEN, CLOSED, MERGED)
func (b *PullRequestBuilder) WithState(state string) *PullRequestBuilder {
	b.state = state
	return b
}

// WithAuthor sets the PR author
func (b *PullRequestBuilder) WithAuthor(author string) *PullRequestBuilder {
	b.author = author
	return b
}

// WithCreatedAt sets when the PR was created
func (b *PullRequestBuilder) WithCreatedAt(t time.Time) *PullRequestBuilder {
	b.createdAt = t
	return b
}

// WithMergedAt marks the PR as merged at the given time
func (b *PullRequestBuilder) WithMergedAt(t time.Time) *PullRequestBuilder {
	b.mergedAt = &t
	b.state = "MERGED"
	b.mergeable = "UNKNOWN"
	if b.closedAt == nil {
		b.closedAt = &t
	}
	return b
}

// WithClosedAt marks the PR as closed at the given time
func (b *PullRequestBuilder) WithClosedAt(t time.Time) *PullRequestBuilder {
	b.closedAt = &t
	if b.state == "OPEN" {
		b.state = "CLOSED"
	}
	return b
}

// WithChanges sets the additions/deletions/files
func (b *PullRequestBuilder) WithChanges(additions, deletions, files int) *PullRequestBuilder {
	b.additions = additions
	b.deletions = deletions
	b.changedFiles = files
	return b
}

// WithLocked marks the conversation as locked
func (b *PullRequestBuilder) WithLocked() *PullRequestBuilder {
	b.locked = true
	return b
}

// Minimal drops every field except id and title
func (b *PullRequestBuilder) Minimal() *PullRequestBuilder {
	b.minimal = true
	return b
}

// ID returns the node ID the builder produces
func (b *PullRequestBuilder) ID() string {
	return b.id
}

// Build creates the PR node
func (b *PullRequestBuilder) Build() map[string]interface{} {
	if b.minimal {
		return map[string]interface{}{
			"id":    b.id,
			"title": b.title,
		}
	}

	pr := map[string]interface{}{
		"id":               b.id,
		"url":              fmt.Sprintf("https://github.com/test/%s/pull/%d", b.repository, b.number),
		"title":            b.title,
		"number":           b.number,
		"state":            b.state,
		"additions":        b.additions,
		"changedFiles":     b.changedFiles,
		"deletions":        b.deletions,
		"activeLockReason": nil,
		"closed":           b.closedAt != nil,
		"createdAt":        b.createdAt.Format(time.RFC3339),
		"lastEditedAt":     nil,
		"locked":           b.locked,
		"merged":           b.mergedAt != nil,
		"mergeable":        b.mergeable,
		"publishedAt":      b.createdAt.Format(time.RFC3339),
		"repository": map[string]interface{}{
			"name": b.repository,
		},
		"updatedAt": b.updatedAt.Format(time.RFC3339),
		"bodyText":  b.body,
		"author": map[string]interface{}{
			"login": b.author,
		},
	}

	if b.mergedAt != nil {
		pr["mergedAt"] = b.mergedAt.Format(time.RFC3339)
	} else {
		pr["mergedAt"] = nil
	}

	if b.closedAt != nil {
		pr["closedAt"] = b.closedAt.Format(time.RFC3339)
	} else {
		pr["closedAt"] = nil
	}

	if b.locked {
		pr["activeLockReason"] = "RESOLVED"
	}

	return pr
}

// Repository is a repository served by GraphQLServer together with all of
// its pull request nodes, in the order they are paginated.
type Repository struct {
	Name         string
	PullRequests []map[string]interface{}
}

// NewRepository creates a repository fixture with prCount generated PRs
// numbered from 1.
func NewRepository(name string, prCount int) Repository {
	repo := Repository{Name: name}
	for i := 1; i <= prCount; i++ {
		b := NewPullRequestBuilder(name, i)
		switch i % 3 {
		case 1:
			b.WithMergedAt(b.createdAt.Add(48 * time.Hour))
		case 2:
			b.WithClosedAt(b.createdAt.Add(24 * time.Hour))
		}
		repo.PullRequests = append(repo.PullRequests, b.Build())
	}
	return repo
}

// NewRepositories creates count repositories named repo-1..repo-N with
// prsEach PRs apiece.
func NewRepositories(count, prsEach int) []Repository {
	repos := make([]Repository, 0, count)
	for i := 1; i <= count; i++ {
		repos = append(repos, NewRepository(fmt.Sprintf("repo-%d", i), prsEach))
	}
	return repos
}
