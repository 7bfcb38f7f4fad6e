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
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	harvesterrors "github.com/sirseerhq/sirseer-harvest/internal/errors"
	"github.com/sirseerhq/sirseer-harvest/internal/github"
	"github.com/sirseerhq/sirseer-harvest/internal/metadata"
	"github.com/sirseerhq/sirseer-harvest/internal/query"
)

func newBuilder(t *testing.T) *query.Builder {
	t.Helper()
	b, err := query.NewBuilder("acme", 2)
	require.NoError(t, err)
	return b
}

func prs(ids ...string) []*github.PullRequestNode {
	nodes := make([]*github.PullRequestNode, len(ids))
	for i, id := range ids {
		nodes[i] = github.NewPullRequestNode(id, "title "+id)
	}
	return nodes
}

func requestsFor(mock *github.MockTransport, operation string) []query.Request {
	var out []query.Request
	for _, r := range mock.Requests() {
		if r.OperationName == operation {
			out = append(out, r)
		}
	}
	return out
}

func TestRun_TwoRepositoriesOneFollowUp(t *testing.T) {
	mock := github.NewMockTransport(
		github.WithOrganizationPage(query.Start, github.NewOrganizationResponse("Acme", false, "",
			github.NewRepositoryNode("A", github.NewPullRequestPage(false, "", prs("A1", "A2")...)),
			github.NewRepositoryNode("B", github.NewPullRequestPage(true, "b-cursor-1", prs("B1", "B2")...)),
		)),
		github.WithRepositoryPage("B", query.After("b-cursor-1"),
			github.NewRepositoryResponse("B", github.NewPullRequestPage(false, "", prs("B3")...))),
	)

	store, err := New(newBuilder(t), mock).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, mock.Calls(query.OperationOrganization))
	assert.Equal(t, 1, mock.Calls(query.OperationRepository))
	assert.Equal(t, 5, store.Len())
	for _, id := range []string{"A1", "A2", "B1", "B2", "B3"} {
		_, ok := store.Get(id)
		assert.True(t, ok, "missing %s", id)
	}

	repoReqs := requestsFor(mock, query.OperationRepository)
	require.Len(t, repoReqs, 1)
	assert.Equal(t, "B", repoReqs[0].Variables["repoName"])
	assert.Equal(t, "b-cursor-1", repoReqs[0].Variables["innerCursor"])

	b3, _ := store.Get("B3")
	assert.Equal(t, "B", b3.Repository)
}

func TestRun_OrganizationSpansTwoPages(t *testing.T) {
	mock := github.NewMockTransport(
		github.WithOrganizationPage(query.Start, github.NewOrganizationResponse("Acme", true, "org-cursor-1",
			github.NewRepositoryNode("A", github.NewPullRequestPage(false, "", prs("A1", "A2")...)),
			github.NewRepositoryNode("B", github.NewPullRequestPage(false, "", prs("B1")...)),
			github.NewRepositoryNode("C", github.NewPullRequestPage(false, "", prs("C1", "C2")...)),
		)),
		github.WithOrganizationPage(query.After("org-cursor-1"), github.NewOrganizationResponse("Acme", false, "",
			github.NewRepositoryNode("D", github.NewPullRequestPage(false, "", prs("D1")...)),
		)),
	)

	store, err := New(newBuilder(t), mock).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, mock.Calls(query.OperationOrganization))
	assert.Equal(t, 0, mock.Calls(query.OperationRepository))
	assert.Equal(t, 6, store.Len())

	orgReqs := requestsFor(mock, query.OperationOrganization)
	require.Len(t, orgReqs, 2)
	assert.Nil(t, orgReqs[0].Variables["outerCursor"])
	assert.Equal(t, "org-cursor-1", orgReqs[1].Variables["outerCursor"])
}

func TestRun_FailureOnSecondRepositoryCall(t *testing.T) {
	mock := github.NewMockTransport(
		github.WithOrganizationPage(query.Start, github.NewOrganizationResponse("Acme", false, "",
			github.NewRepositoryNode("A", github.NewPullRequestPage(true, "a1", prs("A1")...)),
			github.NewRepositoryNode("B", github.NewPullRequestPage(true, "b1", prs("B1")...)),
		)),
		github.WithRepositoryPage("A", query.After("a1"),
			github.NewRepositoryResponse("A", github.NewPullRequestPage(false, "", prs("A2")...))),
		github.WithRepositoryPage("B", query.After("b1"),
			github.NewRepositoryResponse("B", github.NewPullRequestPage(false, "", prs("B2")...))),
		github.WithFailure(query.OperationRepository, 2, &harvesterrors.TransportError{
			StatusCode: http.StatusInternalServerError,
			Request: harvesterrors.RequestContext{
				Operation:   query.OperationRepository,
				Repository:  "B",
				InnerCursor: query.After("b1").Ptr(),
			},
		}),
	)

	store, err := New(newBuilder(t), mock).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, harvesterrors.ErrTransport)

	var te *harvesterrors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.Contains(t, err.Error(), `innerCursor="b1"`)

	// Repo A in full and B's first page survive in the returned store.
	require.NotNil(t, store)
	assert.Equal(t, 3, store.Len())
	for _, id := range []string{"A1", "A2", "B1"} {
		_, ok := store.Get(id)
		assert.True(t, ok, "missing %s", id)
	}
	_, ok := store.Get("B2")
	assert.False(t, ok)
}

func TestRun_IDAndTitleOnlyNode(t *testing.T) {
	mock := github.NewMockTransport(
		github.WithOrganizationPage(query.Start, github.NewOrganizationResponse("Acme", false, "",
			github.NewRepositoryNode("A", github.NewPullRequestPage(false, "",
				github.NewPullRequestNode("PR_sparse", "Only a title"))),
		)),
	)

	store, err := New(newBuilder(t), mock).Run(context.Background())
	require.NoError(t, err)

	got, ok := store.Get("PR_sparse")
	require.True(t, ok)
	assert.Equal(t, "Only a title", got.Title)
	assert.Equal(t, "A", got.Repository)
	assert.Zero(t, got.Number)
	assert.Empty(t, got.URL)
	assert.Empty(t, got.Author)
	assert.False(t, got.Merged)
	assert.True(t, got.CreatedAt.IsZero())
}

func TestRun_EmptyIntermediatePageContinues(t *testing.T) {
	mock := github.NewMockTransport(
		github.WithOrganizationPage(query.Start, github.NewOrganizationResponse("Acme", false, "",
			github.NewRepositoryNode("A", github.NewPullRequestPage(true, "a1", prs("A1")...)),
		)),
		github.WithRepositoryPage("A", query.After("a1"),
			github.NewRepositoryResponse("A", github.NewPullRequestPage(true, "a2"))),
		github.WithRepositoryPage("A", query.After("a2"),
			github.NewRepositoryResponse("A", github.NewPullRequestPage(false, "", prs("A2")...))),
	)

	store, err := New(newBuilder(t), mock).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, mock.Calls(query.OperationRepository))
	assert.Equal(t, 2, store.Len())
}

func TestRun_RequestCountEqualsPageCount(t *testing.T) {
	for _, pageCount := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("%d_pages", pageCount), func(t *testing.T) {
			opts := []github.MockOption{
				github.WithOrganizationPage(query.Start, github.NewOrganizationResponse("Acme", false, "",
					github.NewRepositoryNode("A", github.NewPullRequestPage(pageCount > 1, "p1", prs("A-1")...)),
				)),
			}
			for p := 2; p <= pageCount; p++ {
				hasNext := p < pageCount
				opts = append(opts, github.WithRepositoryPage("A", query.After(fmt.Sprintf("p%d", p-1)),
					github.NewRepositoryResponse("A", github.NewPullRequestPage(hasNext, fmt.Sprintf("p%d", p), prs(fmt.Sprintf("A-%d", p))...))))
			}
			mock := github.NewMockTransport(opts...)

			store, err := New(newBuilder(t), mock).Run(context.Background())
			require.NoError(t, err)

			// The seed page arrives with the organization call.
			assert.Equal(t, 1, mock.Calls(query.OperationOrganization))
			assert.Equal(t, pageCount-1, mock.Calls(query.OperationRepository))
			assert.Equal(t, pageCount, store.Len())

			// Each request carries exactly the previous page's endCursor.
			for i, req := range requestsFor(mock, query.OperationRepository) {
				assert.Equal(t, fmt.Sprintf("p%d", i+1), req.Variables["innerCursor"])
			}
		})
	}
}

func TestRun_TerminalPageWithNodesStops(t *testing.T) {
	// hasNextPage=false with a non-null endCursor must not trigger a fetch.
	mock := github.NewMockTransport(
		github.WithOrganizationPage(query.Start, github.NewOrganizationResponse("Acme", false, "org-end",
			github.NewRepositoryNode("A", github.NewPullRequestPage(false, "a-end", prs("A1", "A2")...)),
		)),
	)

	store, err := New(newBuilder(t), mock).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, len(mock.Requests()))
	assert.Equal(t, 2, store.Len())
}

func TestRun_DuplicateRecordsOverwrite(t *testing.T) {
	mock := github.NewMockTransport(
		github.WithOrganizationPage(query.Start, github.NewOrganizationResponse("Acme", false, "",
			github.NewRepositoryNode("A", github.NewPullRequestPage(true, "a1", prs("X", "Y")...)),
		)),
		github.WithRepositoryPage("A", query.After("a1"),
			github.NewRepositoryResponse("A", github.NewPullRequestPage(false, "", prs("Y", "Z")...))),
	)

	store, err := New(newBuilder(t), mock).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())
}

func TestRun_InnerCursorsNeverCrossRepositories(t *testing.T) {
	// Both repositories use the same cursor token; each follow-up must still
	// be paired with its own repository name.
	mock := github.NewMockTransport(
		github.WithOrganizationPage(query.Start, github.NewOrganizationResponse("Acme", false, "",
			github.NewRepositoryNode("A", github.NewPullRequestPage(true, "Y3Vyc29yOjI=", prs("A1")...)),
			github.NewRepositoryNode("B", github.NewPullRequestPage(true, "Y3Vyc29yOjI=", prs("B1")...)),
		)),
		github.WithRepositoryPage("A", query.After("Y3Vyc29yOjI="),
			github.NewRepositoryResponse("A", github.NewPullRequestPage(false, "", prs("A2")...))),
		github.WithRepositoryPage("B", query.After("Y3Vyc29yOjI="),
			github.NewRepositoryResponse("B", github.NewPullRequestPage(false, "", prs("B2")...))),
	)

	store, err := New(newBuilder(t), mock).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, store.Len())

	repoReqs := requestsFor(mock, query.OperationRepository)
	require.Len(t, repoReqs, 2)
	assert.Equal(t, "A", repoReqs[0].Variables["repoName"])
	assert.Equal(t, "B", repoReqs[1].Variables["repoName"])
	for _, req := range repoReqs {
		_, hasOuter := req.Variables["outerCursor"]
		assert.False(t, hasOuter, "repoLevel must not send the outer cursor")
	}

	a2, _ := store.Get("A2")
	b2, _ := store.Get("B2")
	assert.Equal(t, "A", a2.Repository)
	assert.Equal(t, "B", b2.Repository)
}

func TestRun_ProtocolShapeErrors(t *testing.T) {
	noHasNext := github.NewOrganizationResponse("Acme", false, "")
	noHasNext.Data.Organization.Repositories.PageInfo.HasNextPage = nil

	danglingCursor := github.NewOrganizationResponse("Acme", true, "")

	innerNoPageInfo := github.NewPullRequestPage(false, "", prs("A1")...)
	innerNoPageInfo.PageInfo = nil

	missingID := github.NewPullRequestPage(false, "", &github.PullRequestNode{Title: new(string)})

	tests := []struct {
		name     string
		opts     []github.MockOption
		wantPath string
	}{
		{
			name:     "no data",
			opts:     []github.MockOption{github.WithOrganizationPage(query.Start, &github.Response{})},
			wantPath: "data",
		},
		{
			name: "no organization",
			opts: []github.MockOption{github.WithOrganizationPage(query.Start,
				&github.Response{Data: &github.ResponseData{}})},
			wantPath: "data.organization",
		},
		{
			name:     "missing hasNextPage",
			opts:     []github.MockOption{github.WithOrganizationPage(query.Start, noHasNext)},
			wantPath: "data.organization.repositories.pageInfo.hasNextPage",
		},
		{
			name:     "hasNextPage without endCursor",
			opts:     []github.MockOption{github.WithOrganizationPage(query.Start, danglingCursor)},
			wantPath: "data.organization.repositories.pageInfo.endCursor",
		},
		{
			name: "repository without pullRequests",
			opts: []github.MockOption{github.WithOrganizationPage(query.Start,
				github.NewOrganizationResponse("Acme", false, "", github.NewRepositoryNode("A", nil)))},
			wantPath: "data.organization.repositories.nodes[0].pullRequests",
		},
		{
			name: "inner connection without pageInfo",
			opts: []github.MockOption{github.WithOrganizationPage(query.Start,
				github.NewOrganizationResponse("Acme", false, "", github.NewRepositoryNode("A", innerNoPageInfo)))},
			wantPath: "data.organization.repositories.nodes[0].pullRequests.pageInfo",
		},
		{
			name: "pull request without id",
			opts: []github.MockOption{github.WithOrganizationPage(query.Start,
				github.NewOrganizationResponse("Acme", false, "", github.NewRepositoryNode("A", missingID)))},
			wantPath: "data.organization.repositories.nodes[0].pullRequests.nodes[0].id",
		},
		{
			name: "repoLevel without repository",
			opts: []github.MockOption{
				github.WithOrganizationPage(query.Start, github.NewOrganizationResponse("Acme", false, "",
					github.NewRepositoryNode("A", github.NewPullRequestPage(true, "a1", prs("A1")...)))),
				github.WithRepositoryPage("A", query.After("a1"), &github.Response{Data: &github.ResponseData{}}),
			},
			wantPath: "data.repository",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(newBuilder(t), github.NewMockTransport(tt.opts...)).Run(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, harvesterrors.ErrProtocolShape)

			var shape *harvesterrors.ProtocolShapeError
			require.ErrorAs(t, err, &shape)
			assert.Equal(t, tt.wantPath, shape.Path)
			assert.NotNil(t, store)
		})
	}
}

func TestRun_LenientNodes(t *testing.T) {
	nilNodes := github.NewPullRequestPage(false, "")
	nilNodes.Nodes = nil

	mock := github.NewMockTransport(
		github.WithOrganizationPage(query.Start, github.NewOrganizationResponse("Acme", false, "",
			nil,
			github.NewRepositoryNode("A", nilNodes),
			github.NewRepositoryNode("B", github.NewPullRequestPage(false, "", nil, github.NewPullRequestNode("B1", "b"))),
		)),
	)

	store, err := New(newBuilder(t), mock).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

// inflightProbe records the highest number of concurrent requests.
type inflightProbe struct {
	next github.Transport
	cur  atomic.Int32
	max  atomic.Int32
}

func (p *inflightProbe) Execute(ctx context.Context, req query.Request) (*github.Response, error) {
	n := p.cur.Add(1)
	defer p.cur.Add(-1)
	for {
		m := p.max.Load()
		if n <= m || p.max.CompareAndSwap(m, n) {
			break
		}
	}
	return p.next.Execute(ctx, req)
}

// multiPageOrganization scripts repos repositories with pages pull request
// pages each, all on one organization page.
func multiPageOrganization(repos, pages int, extra ...github.MockOption) []github.MockOption {
	var nodes []*github.Repository
	var opts []github.MockOption
	for r := 0; r < repos; r++ {
		name := fmt.Sprintf("repo-%02d", r)
		cursor := func(p int) string { return fmt.Sprintf("%s-p%d", name, p) }
		nodes = append(nodes, github.NewRepositoryNode(name,
			github.NewPullRequestPage(pages > 1, cursor(1), prs(name+"#1")...)))
		for p := 2; p <= pages; p++ {
			opts = append(opts, github.WithRepositoryPage(name, query.After(cursor(p-1)),
				github.NewRepositoryResponse(name, github.NewPullRequestPage(p < pages, cursor(p), prs(fmt.Sprintf("%s#%d", name, p))...))))
		}
	}
	opts = append(opts, github.WithOrganizationPage(query.Start, github.NewOrganizationResponse("Acme", false, "", nodes...)))
	return append(opts, extra...)
}

func TestRun_ConcurrentWorkers(t *testing.T) {
	mock := github.NewMockTransport(multiPageOrganization(10, 3, github.WithLatency(5*time.Millisecond))...)
	probe := &inflightProbe{next: mock}
	tracker := metadata.New()

	store, err := New(newBuilder(t), probe, WithWorkers(4), WithTracker(tracker)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 30, store.Len())
	assert.Equal(t, 20, mock.Calls(query.OperationRepository))
	assert.LessOrEqual(t, probe.max.Load(), int32(4))
	assert.Greater(t, probe.max.Load(), int32(1))

	assert.Equal(t, 1, tracker.APICalls(query.OperationOrganization))
	assert.Equal(t, 20, tracker.APICalls(query.OperationRepository))

	// Every follow-up pairs a repository with a cursor issued for it.
	for _, req := range requestsFor(mock, query.OperationRepository) {
		repo := req.Variables["repoName"].(string)
		assert.Contains(t, req.Variables["innerCursor"], repo+"-p")
	}
	for _, r := range store.All() {
		assert.Contains(t, r.ID, r.Repository+"#")
	}
}

func TestRun_SingleWorkerIsSequential(t *testing.T) {
	mock := github.NewMockTransport(multiPageOrganization(4, 2, github.WithLatency(time.Millisecond))...)
	probe := &inflightProbe{next: mock}

	_, err := New(newBuilder(t), probe).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), probe.max.Load())
}

func TestRun_ConcurrentFailureReportsCause(t *testing.T) {
	failure := &harvesterrors.TransportError{StatusCode: http.StatusUnauthorized}
	mock := github.NewMockTransport(multiPageOrganization(8, 4,
		github.WithLatency(2*time.Millisecond),
		github.WithFailure(query.OperationRepository, 3, failure))...)

	store, err := New(newBuilder(t), mock, WithWorkers(3)).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, harvesterrors.ErrInvalidToken)
	assert.NotErrorIs(t, err, context.Canceled)
	assert.Less(t, store.Len(), 32)
}

func TestRun_CancelledContext(t *testing.T) {
	mock := github.NewMockTransport(multiPageOrganization(1, 1)...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store, err := New(newBuilder(t), mock).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, mock.Requests())
}

func TestRun_DeadlineStopsDrains(t *testing.T) {
	mock := github.NewMockTransport(multiPageOrganization(20, 5, github.WithLatency(20*time.Millisecond))...)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	start := time.Now()
	store, err := New(newBuilder(t), mock, WithWorkers(2)).Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, store.Len(), 100)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRun_Progress(t *testing.T) {
	resp := github.NewOrganizationResponse("Acme", false, "",
		github.NewRepositoryNode("A", github.NewPullRequestPage(false, "", prs("A1")...)),
		github.NewRepositoryNode("B", github.NewPullRequestPage(false, "", prs("B1", "B2")...)),
	)
	total := 2
	resp.Data.Organization.Repositories.TotalCount = &total
	mock := github.NewMockTransport(github.WithOrganizationPage(query.Start, resp))

	var mu sync.Mutex
	var events []Progress
	_, err := New(newBuilder(t), mock, WithProgress(func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, p)
	})).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, Progress{Repository: "A", RepositoriesDone: 1, TotalRepositories: 2, Records: 1}, events[0])
	assert.Equal(t, Progress{Repository: "B", RepositoriesDone: 2, TotalRepositories: 2, Records: 3}, events[1])
}

func TestRun_TransportErrorsPropagateUnchanged(t *testing.T) {
	want := errors.New("dial tcp: connection refused")
	mock := github.NewMockTransport(github.WithFailure(query.OperationOrganization, 1, want))

	store, err := New(newBuilder(t), mock).Run(context.Background())
	assert.ErrorIs(t, err, want)
	assert.Equal(t, 0, store.Len())
}
