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

package state

import (
	"errors"
	"time"

	harvesterrors "github.com/sirseerhq/sirseer-harvest/internal/errors"
)

// CurrentVersion is the current checkpoint schema version.
// Increment this when making breaking changes to the Checkpoint structure.
const CurrentVersion = 1

// Checkpoint records where a failed harvest stopped. It holds the request
// that failed, so the failure can be reproduced, and how much had been
// collected by then. Checkpoints are versioned and carry a checksum to detect
// corruption.
type Checkpoint struct {
	// Version indicates the schema version of this checkpoint file.
	Version int `json:"version"`

	// Checksum is the SHA256 hash of the checkpoint content (excluding this
	// field).
	Checksum string `json:"checksum"`

	Organization string `json:"organization"`
	RunID        string `json:"run_id"`

	// Operation, Repository and the cursors describe the failing request.
	// They are empty when the failure happened outside a request, e.g. on
	// cancellation.
	Operation   string  `json:"operation,omitempty"`
	Repository  string  `json:"repository,omitempty"`
	OuterCursor *string `json:"outer_cursor"`
	InnerCursor *string `json:"inner_cursor"`

	// RecordsCollected is the number of distinct pull requests in the store
	// when the run stopped.
	RecordsCollected int `json:"records_collected"`

	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// NewCheckpoint builds a checkpoint for a run of org that failed with err.
func NewCheckpoint(org, runID string, recordsCollected int, err error, failedAt time.Time) *Checkpoint {
	cp := &Checkpoint{
		Organization:     org,
		RunID:            runID,
		RecordsCollected: recordsCollected,
		FailedAt:         failedAt.UTC(),
	}
	if err != nil {
		cp.Error = err.Error()
	}
	if rc, ok := harvesterrors.ContextOf(err); ok {
		cp.Operation = rc.Operation
		cp.Repository = rc.Repository
		cp.OuterCursor = rc.OuterCursor
		cp.InnerCursor = rc.InnerCursor
	}
	return cp
}

// Request returns the failing request's context.
func (c *Checkpoint) Request() harvesterrors.RequestContext {
	return harvesterrors.RequestContext{
		Operation:    c.Operation,
		Organization: c.Organization,
		Repository:   c.Repository,
		OuterCursor:  c.OuterCursor,
		InnerCursor:  c.InnerCursor,
	}
}

// ErrNoCheckpoint is returned by LoadCheckpoint when no checkpoint exists.
var ErrNoCheckpoint = errors.New("no checkpoint found")
