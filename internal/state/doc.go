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

// Package state persists failure checkpoints for harvest runs.
//
// When a run stops on an error, the request that failed (operation,
// repository and both cursors) is written next to the run's metadata so the
// failure can be inspected and reproduced. A successful run removes the
// checkpoint for its organization.
//
// Checkpoint writes are atomic, using a write-to-temp-and-rename pattern, and
// every file carries a schema version and a SHA256 checksum that are
// validated on load.
//
// Example usage:
//
//	cp := NewCheckpoint("acme", runID, store.Len(), err, time.Now())
//	err := SaveCheckpoint(cp, CheckpointPath(stateDir, "acme"))
package state
