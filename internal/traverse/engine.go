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

// Package traverse walks an organization's repositories and each repository's
// pull requests, two independently paginated connections, and collects every
// pull request into a record.Store exactly once.
//
// The organization loop runs in the caller's goroutine and fetches repository
// pages strictly in cursor order. Each repository arrives with its first page
// of pull requests already attached; the remaining pages are fetched by a
// drain that owns the repository's name and inner cursor for its lifetime.
// Drains of different repositories may run concurrently, see WithWorkers.
package traverse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	harvesterrors "github.com/sirseerhq/sirseer-harvest/internal/errors"
	"github.com/sirseerhq/sirseer-harvest/internal/github"
	"github.com/sirseerhq/sirseer-harvest/internal/metadata"
	"github.com/sirseerhq/sirseer-harvest/internal/query"
	"github.com/sirseerhq/sirseer-harvest/internal/record"
)

// Progress is reported after each repository finishes draining.
type Progress struct {
	Repository string
	// RepositoriesDone counts drained repositories so far.
	RepositoriesDone int
	// TotalRepositories is the server's totalCount, zero when not reported.
	// It is informational and may lag behind the nodes actually returned.
	TotalRepositories int
	Records           int
}

// Engine runs the nested traversal for one organization.
type Engine struct {
	builder   *query.Builder
	transport github.Transport
	workers   int
	logger    *slog.Logger
	tracker   *metadata.Tracker
	progress  func(Progress)

	progressMu sync.Mutex
	done       int
	total      int
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the number of repositories drained concurrently. The
// default of 1 keeps exactly one request in flight.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger used for page and repository events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracker records API calls and drained repositories into t.
func WithTracker(t *metadata.Tracker) Option {
	return func(e *Engine) {
		e.tracker = t
	}
}

// WithProgress registers fn to be called after each repository drain. Calls
// are serialized.
func WithProgress(fn func(Progress)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// New creates an engine that builds requests with builder and sends them
// through transport.
func New(builder *query.Builder, transport github.Transport, opts ...Option) *Engine {
	e := &Engine{
		builder:   builder,
		transport: transport,
		workers:   1,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// repoCursor is the inner traversal state. It pairs the inner cursor with the
// repository it belongs to so the two can never be sent apart.
type repoCursor struct {
	name   string
	cursor query.Cursor
}

// seed is a repository node taken from an organization page, together with
// where it came from for error reporting.
type seed struct {
	name    string
	prs     *github.PullRequestConnection
	path    string
	outer   query.Cursor
	request harvesterrors.RequestContext
}

// Run walks every repository of the organization and returns the collected
// records. The store is returned even when err is non-nil; in that case it
// holds whatever was collected before the failure and must not be treated as
// complete.
//
// The first error stops the run: pending drains are cancelled before their
// next request and the organization loop stops paging.
func (e *Engine) Run(ctx context.Context) (*record.Store, error) {
	store := record.NewStore()
	start := time.Now()
	e.setTotal(0)
	e.done = 0

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	err := e.walkOrganization(gctx, g, store)
	if err != nil && gctx.Err() == nil {
		// The organization loop failed on its own; stop the drains and
		// report its error rather than their cancellations.
		cancel()
		_ = g.Wait()
	} else if werr := g.Wait(); werr != nil {
		err = werr
	}

	if err != nil {
		e.logger.Warn("Traversal failed",
			"org", e.builder.Organization(),
			"records", store.Len(),
			"duration", time.Since(start),
			"error", err)
		return store, err
	}

	e.logger.Info("Traversal complete",
		"org", e.builder.Organization(),
		"repositories", e.done,
		"records", store.Len(),
		"duration", time.Since(start))
	return store, nil
}

// walkOrganization pages through the repository connection, handing each
// repository to a drain. With a single worker the drain runs inline.
func (e *Engine) walkOrganization(ctx context.Context, g *errgroup.Group, store *record.Store) error {
	outer := query.Start

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req := e.builder.OrganizationPage(outer)
		resp, err := e.execute(ctx, req)
		if err != nil {
			return err
		}

		conn, err := repositories(resp, req.Context)
		if err != nil {
			return err
		}
		if conn.TotalCount != nil {
			e.setTotal(*conn.TotalCount)
		}

		for i, node := range conn.Nodes {
			if node == nil {
				continue
			}
			s, err := seedOf(node, i, outer, req.Context)
			if err != nil {
				return err
			}

			if e.workers == 1 {
				if err := e.drainRepository(ctx, store, s); err != nil {
					return err
				}
				continue
			}

			if err := ctx.Err(); err != nil {
				return err
			}
			g.Go(func() error {
				return e.drainRepository(ctx, store, s)
			})
		}

		page, err := pageOf(conn.PageInfo, "data.organization.repositories.pageInfo", req.Context)
		if err != nil {
			return err
		}
		if !page.HasNext {
			return nil
		}
		outer = page.Next
	}
}

// drainRepository stores the seed page and then follows the repository's
// inner cursor until hasNextPage is false.
func (e *Engine) drainRepository(ctx context.Context, store *record.Store, s seed) error {
	rc := repoCursor{name: s.name}
	conn, path, reqCtx := s.prs, s.path, s.request
	pages, records := 1, 0

	for {
		for i, node := range conn.Nodes {
			if node == nil {
				continue
			}
			if node.ID == nil {
				return &harvesterrors.ProtocolShapeError{Path: fmt.Sprintf("%s.nodes[%d].id", path, i), Request: reqCtx}
			}
			store.Put(Normalize(node, rc.name))
			records++
		}

		page, err := pageOf(conn.PageInfo, path+".pageInfo", reqCtx)
		if err != nil {
			return err
		}
		if !page.HasNext {
			break
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rc.cursor = page.Next
		req := e.builder.RepositoryPage(rc.name, rc.cursor)
		req.Context.OuterCursor = s.outer.Ptr()

		resp, err := e.execute(ctx, req)
		if err != nil {
			return err
		}
		conn, err = pullRequests(resp, req.Context)
		if err != nil {
			return err
		}
		path, reqCtx = "data.repository.pullRequests", req.Context
		pages++
	}

	e.logger.Debug("Repository drained",
		"repo", rc.name,
		"pages", pages,
		"records", records)

	if e.tracker != nil {
		e.tracker.RecordRepository()
	}
	e.report(rc.name, store)
	return nil
}

func (e *Engine) execute(ctx context.Context, req query.Request) (*github.Response, error) {
	if e.tracker != nil {
		e.tracker.RecordAPICall(req.OperationName)
	}
	e.logger.Debug("Fetching page",
		"operation", req.OperationName,
		"repo", req.Context.Repository,
		"request", req.Context.String())
	return e.transport.Execute(ctx, req)
}

func (e *Engine) setTotal(n int) {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	e.total = n
}

func (e *Engine) report(repo string, store *record.Store) {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()

	e.done++
	if e.progress != nil {
		e.progress(Progress{
			Repository:        repo,
			RepositoriesDone:  e.done,
			TotalRepositories: e.total,
			Records:           store.Len(),
		})
	}
}
