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

// Package metadata provides functionality for tracking and persisting metadata
// about harvest runs. It records the API calls made per operation, the
// repositories walked, and the number and range of pull requests collected.
//
// Metadata is saved as JSON files in the state directory, allowing external
// tools to analyze run history and API usage.
package metadata

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// MethodVersion identifies the traversal strategy that produced the data
	MethodVersion = "graphql-nested-cursor-v1"
)

// Tracker collects statistics during a run and generates metadata. All
// methods are safe to call concurrently from repository workers.
type Tracker struct {
	mu           sync.Mutex
	runID        string
	startTime    time.Time
	apiCalls     map[string]int
	repositories int
	prStats      PRStats
}

// PRStats holds statistical information about the pull requests collected.
// It tracks both the numerical range (first/last PR numbers) and temporal
// range (oldest/newest PR dates) of the data.
type PRStats struct {
	TotalPRs int       // Total number of PRs processed
	FirstPR  int       // Lowest PR number seen
	LastPR   int       // Highest PR number seen
	OldestPR time.Time // Earliest PR creation date
	NewestPR time.Time // Latest PR update date
}

// New creates a new metadata tracker with a fresh run ID and the current time.
func New() *Tracker {
	return &Tracker{
		runID:     uuid.NewString(),
		startTime: time.Now(),
		apiCalls:  make(map[string]int),
	}
}

// RunID returns the identifier assigned to this run.
func (t *Tracker) RunID() string {
	return t.runID
}

// RecordAPICall records that a request for operation was sent, whether or not
// it succeeded.
func (t *Tracker) RecordAPICall(operation string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.apiCalls[operation]++
}

// RecordRepository records that a repository was fully drained.
func (t *Tracker) RecordRepository() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.repositories++
}

// APICalls returns the number of requests sent for operation.
func (t *Tracker) APICalls(operation string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.apiCalls[operation]
}

// UpdatePRStats updates the running statistics with data from a single pull
// request. Zero timestamps are ignored.
func (t *Tracker) UpdatePRStats(prNumber int, createdAt, updatedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.prStats.TotalPRs++

	// Track first and last PR numbers
	if t.prStats.FirstPR == 0 || prNumber < t.prStats.FirstPR {
		t.prStats.FirstPR = prNumber
	}
	if prNumber > t.prStats.LastPR {
		t.prStats.LastPR = prNumber
	}

	// Track oldest and newest PR dates
	if !createdAt.IsZero() && (t.prStats.OldestPR.IsZero() || createdAt.Before(t.prStats.OldestPR)) {
		t.prStats.OldestPR = createdAt
	}
	if updatedAt.After(t.prStats.NewestPR) {
		t.prStats.NewestPR = updatedAt
	}
}

// GenerateMetadata creates a RunMetadata capturing the complete run
// statistics. runErr is the error the run ended with, or nil.
func (t *Tracker) GenerateMetadata(harvestVersion string, params RunParams, runErr error) *RunMetadata {
	t.mu.Lock()
	defer t.mu.Unlock()

	completedAt := time.Now()
	duration := completedAt.Sub(t.startTime)

	calls := make(map[string]int, len(t.apiCalls))
	total := 0
	for op, n := range t.apiCalls {
		calls[op] = n
		total += n
	}

	md := &RunMetadata{
		HarvestVersion: harvestVersion,
		MethodVersion:  MethodVersion,
		RunID:          t.runID,
		Parameters:     params,
		Results: RunResults{
			TotalPRs:     t.prStats.TotalPRs,
			Repositories: t.repositories,
			FirstPR:      t.prStats.FirstPR,
			LastPR:       t.prStats.LastPR,
			OldestPR:     t.prStats.OldestPR,
			NewestPR:     t.prStats.NewestPR,
			Duration:     duration.String(),
			APICallCount: total,
			APICalls:     calls,
			StartedAt:    t.startTime,
			CompletedAt:  completedAt,
		},
	}
	if runErr != nil {
		md.Error = runErr.Error()
	}
	return md
}

// SaveMetadata persists a RunMetadata record to a JSON file in the specified
// directory. The file is written atomically using a temporary file and rename
// to prevent corruption.
//
// The metadata file will be named: run-metadata-{org}-{timestamp}.json
func SaveMetadata(metadata *RunMetadata, stateDir string) (string, error) {
	// Ensure state directory exists
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}

	filename := fmt.Sprintf("run-metadata-%s-%d.json", metadata.Parameters.Organization, metadata.Results.StartedAt.Unix())
	path := filepath.Join(stateDir, filename)

	// Write to temporary file first for atomicity
	tmpFile := path + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return "", fmt.Errorf("failed to create metadata file: %w", err)
	}

	if err := WriteMetadataToWriter(metadata, file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpFile)
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpFile)
		return "", fmt.Errorf("failed to close metadata file: %w", err)
	}

	// Atomically rename to final location
	if err := os.Rename(tmpFile, path); err != nil {
		return "", fmt.Errorf("failed to save metadata file: %w", err)
	}

	return path, nil
}

// LoadLatestMetadata loads the most recent metadata file for org from the
// state directory, ordered by run start time. Returns nil if none exists.
func LoadLatestMetadata(stateDir, org string) (*RunMetadata, error) {
	pattern := filepath.Join(stateDir, fmt.Sprintf("run-metadata-%s-*.json", org))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata files: %w", err)
	}
	if len(files) == 0 {
		return nil, nil // No previous metadata
	}

	var runs []*RunMetadata
	for _, f := range files {
		md, err := readMetadata(f)
		if err != nil {
			return nil, err
		}
		// The glob also matches orgs sharing a prefix, e.g. "acme" and "acme-labs".
		if md.Parameters.Organization == org {
			runs = append(runs, md)
		}
	}
	if len(runs) == 0 {
		return nil, nil
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Results.StartedAt.After(runs[j].Results.StartedAt)
	})
	return runs[0], nil
}

func readMetadata(path string) (*RunMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer file.Close()

	var metadata RunMetadata
	if err := json.NewDecoder(file).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata %s: %w", filepath.Base(path), err)
	}
	return &metadata, nil
}

// WriteMetadataToWriter serializes metadata to JSON and writes it to the
// provided io.Writer. The output is formatted with indentation for readability.
func WriteMetadataToWriter(metadata *RunMetadata, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}
