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
	"time"

	"github.com/shurcooL/githubv4"

	"github.com/sirseerhq/sirseer-harvest/internal/github"
	"github.com/sirseerhq/sirseer-harvest/internal/record"
)

// Normalize maps a pull request node to a Record. It never fails: every
// field absent or null in the node takes its zero value, and a timestamp that
// does not parse as RFC 3339 becomes the zero time. Repository falls back to
// repoName, the repository the node was fetched under.
//
// The caller is responsible for rejecting nodes without an ID.
func Normalize(node *github.PullRequestNode, repoName string) record.Record {
	if node == nil {
		return record.Record{Repository: repoName}
	}

	r := record.Record{
		ID:               str(node.ID),
		URL:              str(node.URL),
		Title:            str(node.Title),
		Number:           num(node.Number),
		State:            str(node.State),
		Additions:        num(node.Additions),
		ChangedFiles:     num(node.ChangedFiles),
		Deletions:        num(node.Deletions),
		ActiveLockReason: str(node.ActiveLockReason),
		Closed:           flag(node.Closed),
		ClosedAt:         timestamp(node.ClosedAt),
		CreatedAt:        timestamp(node.CreatedAt),
		LastEditedAt:     timestamp(node.LastEditedAt),
		Locked:           flag(node.Locked),
		Merged:           flag(node.Merged),
		Mergeable:        mergeable(node.Mergeable),
		MergedAt:         timestamp(node.MergedAt),
		PublishedAt:      timestamp(node.PublishedAt),
		Repository:       repoName,
		UpdatedAt:        timestamp(node.UpdatedAt),
		BodyText:         str(node.BodyText),
	}

	if node.Repository != nil && node.Repository.Name != nil {
		r.Repository = *node.Repository.Name
	}
	if node.Author != nil {
		r.Author = str(node.Author.Login)
	}

	return r
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func num(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func flag(p *bool) bool {
	return p != nil && *p
}

func timestamp(p *string) time.Time {
	if p == nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, *p)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// mergeable collapses the tri-state MergeableState; CONFLICTING and UNKNOWN
// both map to false.
func mergeable(p *string) bool {
	return p != nil && githubv4.MergeableState(*p) == githubv4.MergeableStateMergeable
}
