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

package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type prUpdate struct {
	prNumber  int
	createdAt time.Time
	updatedAt time.Time
}

func TestTracker_UpdatePRStats(t *testing.T) {
	tests := []struct {
		name      string
		updates   []prUpdate
		wantStats PRStats
	}{
		{
			name: "single PR",
			updates: []prUpdate{
				{100, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)},
			},
			wantStats: PRStats{
				TotalPRs: 1,
				FirstPR:  100,
				LastPR:   100,
				OldestPR: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				NewestPR: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "PRs out of order",
			updates: []prUpdate{
				{200, time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 6, 0, 0, 0, 0, time.UTC)},
				{50, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)},
				{150, time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)},
			},
			wantStats: PRStats{
				TotalPRs: 3,
				FirstPR:  50,
				LastPR:   200,
				OldestPR: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				NewestPR: time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "missing timestamps are ignored",
			updates: []prUpdate{
				{7, time.Time{}, time.Time{}},
				{8, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), time.Time{}},
			},
			wantStats: PRStats{
				TotalPRs: 2,
				FirstPR:  7,
				LastPR:   8,
				OldestPR: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := New()

			for _, update := range tt.updates {
				tracker.UpdatePRStats(update.prNumber, update.createdAt, update.updatedAt)
			}

			if tracker.prStats.TotalPRs != tt.wantStats.TotalPRs {
				t.Errorf("TotalPRs = %d, want %d", tracker.prStats.TotalPRs, tt.wantStats.TotalPRs)
			}
			if tracker.prStats.FirstPR != tt.wantStats.FirstPR {
				t.Errorf("FirstPR = %d, want %d", tracker.prStats.FirstPR, tt.wantStats.FirstPR)
			}
			if tracker.prStats.LastPR != tt.wantStats.LastPR {
				t.Errorf("LastPR = %d, want %d", tracker.prStats.LastPR, tt.wantStats.LastPR)
			}
			if !tracker.prStats.OldestPR.Equal(tt.wantStats.OldestPR) {
				t.Errorf("OldestPR = %v, want %v", tracker.prStats.OldestPR, tt.wantStats.OldestPR)
			}
			if !tracker.prStats.NewestPR.Equal(tt.wantStats.NewestPR) {
				t.Errorf("NewestPR = %v, want %v", tracker.prStats.NewestPR, tt.wantStats.NewestPR)
			}
		})
	}
}

func TestTracker_ConcurrentRecording(t *testing.T) {
	tracker := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.RecordAPICall("repoLevel")
			tracker.RecordRepository()
		}()
	}
	wg.Wait()

	if got := tracker.APICalls("repoLevel"); got != 50 {
		t.Errorf("APICalls = %d, want 50", got)
	}
	if tracker.repositories != 50 {
		t.Errorf("repositories = %d, want 50", tracker.repositories)
	}
}

func TestTracker_GenerateMetadata(t *testing.T) {
	tracker := New()
	tracker.RecordAPICall("orgLevel")
	tracker.RecordAPICall("orgLevel")
	tracker.RecordAPICall("repoLevel")
	tracker.RecordRepository()
	tracker.UpdatePRStats(100, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC))
	tracker.UpdatePRStats(101, time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC))

	params := RunParams{
		Organization: "kubernetes",
		PageSize:     50,
		Workers:      4,
	}

	metadata := tracker.GenerateMetadata("v1.2.3", params, nil)

	// Verify metadata fields
	if metadata.HarvestVersion != "v1.2.3" {
		t.Errorf("HarvestVersion = %s, want v1.2.3", metadata.HarvestVersion)
	}
	if metadata.MethodVersion != MethodVersion {
		t.Errorf("MethodVersion = %s, want %s", metadata.MethodVersion, MethodVersion)
	}
	if _, err := uuid.Parse(metadata.RunID); err != nil {
		t.Errorf("RunID = %s is not a UUID: %v", metadata.RunID, err)
	}
	if metadata.RunID != tracker.RunID() {
		t.Errorf("RunID = %s, want %s", metadata.RunID, tracker.RunID())
	}
	if metadata.Error != "" {
		t.Errorf("Error = %q, want empty", metadata.Error)
	}

	// Verify results
	if metadata.Results.TotalPRs != 2 {
		t.Errorf("TotalPRs = %d, want 2", metadata.Results.TotalPRs)
	}
	if metadata.Results.APICallCount != 3 {
		t.Errorf("APICallCount = %d, want 3", metadata.Results.APICallCount)
	}
	if metadata.Results.APICalls["orgLevel"] != 2 || metadata.Results.APICalls["repoLevel"] != 1 {
		t.Errorf("APICalls = %v", metadata.Results.APICalls)
	}
	if metadata.Results.Repositories != 1 {
		t.Errorf("Repositories = %d, want 1", metadata.Results.Repositories)
	}
}

func TestTracker_GenerateMetadata_Failed(t *testing.T) {
	tracker := New()
	metadata := tracker.GenerateMetadata("v1.0.0", RunParams{Organization: "org"}, errors.New("request failed with status 502"))

	if metadata.Error != "request failed with status 502" {
		t.Errorf("Error = %q", metadata.Error)
	}
	if New().RunID() == tracker.RunID() {
		t.Error("expected distinct run IDs")
	}
}

func TestSaveMetadata(t *testing.T) {
	tmpDir := t.TempDir()

	metadata := &RunMetadata{
		HarvestVersion: "v1.2.3",
		MethodVersion:  MethodVersion,
		RunID:          "6f1c1d36-7c1e-4a7e-9d63-4b1f2f7f3a10",
		Parameters: RunParams{
			Organization: "kubernetes",
			PageSize:     50,
		},
		Results: RunResults{
			TotalPRs:     100,
			FirstPR:      1,
			LastPR:       100,
			Duration:     "5m30s",
			APICallCount: 10,
			StartedAt:    time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
			CompletedAt:  time.Date(2023, 1, 1, 12, 5, 30, 0, time.UTC),
		},
	}

	// Save metadata
	path, err := SaveMetadata(metadata, tmpDir)
	if err != nil {
		t.Fatalf("SaveMetadata failed: %v", err)
	}

	// Verify file was created
	expectedFile := filepath.Join(tmpDir, "run-metadata-kubernetes-1672574400.json")
	if path != expectedFile {
		t.Errorf("path = %s, want %s", path, expectedFile)
	}

	// Read and verify contents
	data, err := os.ReadFile(expectedFile)
	if err != nil {
		t.Fatalf("failed to read metadata file: %v", err)
	}

	var loaded RunMetadata
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("failed to parse metadata: %v", err)
	}

	if loaded.HarvestVersion != metadata.HarvestVersion {
		t.Errorf("HarvestVersion = %s, want %s", loaded.HarvestVersion, metadata.HarvestVersion)
	}
	if loaded.Results.TotalPRs != metadata.Results.TotalPRs {
		t.Errorf("TotalPRs = %d, want %d", loaded.Results.TotalPRs, metadata.Results.TotalPRs)
	}

	// No temporary file should remain
	if _, err := os.Stat(expectedFile + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be removed")
	}
}

func TestLoadLatestMetadata(t *testing.T) {
	tmpDir := t.TempDir()

	older := &RunMetadata{
		RunID:      "older",
		Parameters: RunParams{Organization: "org"},
		Results:    RunResults{StartedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	newer := &RunMetadata{
		RunID:      "newer",
		Parameters: RunParams{Organization: "org"},
		Results:    RunResults{StartedAt: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	prefixed := &RunMetadata{
		RunID:      "other",
		Parameters: RunParams{Organization: "org-labs"},
		Results:    RunResults{StartedAt: time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)},
	}

	for _, md := range []*RunMetadata{newer, older, prefixed} {
		if _, err := SaveMetadata(md, tmpDir); err != nil {
			t.Fatalf("SaveMetadata failed: %v", err)
		}
	}

	loaded, err := LoadLatestMetadata(tmpDir, "org")
	if err != nil {
		t.Fatalf("LoadLatestMetadata failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected metadata, got nil")
	}
	if loaded.RunID != "newer" {
		t.Errorf("RunID = %s, want newer", loaded.RunID)
	}
}

func TestLoadLatestMetadata_None(t *testing.T) {
	loaded, err := LoadLatestMetadata(t.TempDir(), "org")
	if err != nil {
		t.Fatalf("LoadLatestMetadata failed: %v", err)
	}
	if loaded != nil {
		t.Error("expected nil metadata for empty directory")
	}
}

func TestWriteMetadataToWriter(t *testing.T) {
	metadata := &RunMetadata{
		HarvestVersion: "v1.2.3",
		MethodVersion:  MethodVersion,
		RunID:          "run",
		Parameters:     RunParams{Organization: "kubernetes"},
	}

	var buf bytes.Buffer
	if err := WriteMetadataToWriter(metadata, &buf); err != nil {
		t.Fatalf("WriteMetadataToWriter failed: %v", err)
	}

	// Verify output is valid JSON
	var loaded RunMetadata
	if err := json.Unmarshal(buf.Bytes(), &loaded); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}

	// Verify indentation
	if !strings.Contains(buf.String(), "\n  \"harvest_version\"") {
		t.Error("output should be indented")
	}
}
