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

// Package metadata types define the structures used for tracking and
// persisting information about harvest runs.
package metadata

import (
	"time"
)

// RunMetadata represents the complete metadata record for a single harvest
// run: what was requested, how it went and what it produced. Failed runs are
// recorded too, with Error set.
type RunMetadata struct {
	HarvestVersion string     `json:"harvest_version"`
	MethodVersion  string     `json:"method_version"`
	RunID          string     `json:"run_id"`
	Parameters     RunParams  `json:"parameters"`
	Results        RunResults `json:"results"`
	Error          string     `json:"error,omitempty"`
}

// RunParams captures the input parameters used for a run.
type RunParams struct {
	Organization string `json:"organization"`
	PageSize     int    `json:"page_size"`
	Workers      int    `json:"workers"`
	Endpoint     string `json:"endpoint"`
}

// RunResults contains statistics about a run. APICalls is broken down by
// GraphQL operation name.
type RunResults struct {
	TotalPRs     int            `json:"total_prs"`
	Repositories int            `json:"repositories"`
	FirstPR      int            `json:"first_pr_number"`
	LastPR       int            `json:"last_pr_number"`
	OldestPR     time.Time      `json:"oldest_pr_date"`
	NewestPR     time.Time      `json:"newest_pr_date"`
	Duration     string         `json:"run_duration"`
	APICallCount int            `json:"api_calls_made"`
	APICalls     map[string]int `json:"api_calls_by_operation"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  time.Time      `json:"completed_at"`
}
