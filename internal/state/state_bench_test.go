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
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	harvesterrors "github.com/sirseerhq/sirseer-harvest/internal/errors"
)

func benchCheckpoint(records int, msgSize int) *Checkpoint {
	cause := &harvesterrors.QueryError{
		Messages: []string{strings.Repeat("x", msgSize)},
		Request: harvesterrors.RequestContext{
			Operation:   "repoLevel",
			Repository:  "widgets",
			OuterCursor: strPtr("Y3Vyc29yOnYyOpHOAAAAAQ=="),
			InnerCursor: strPtr("Y3Vyc29yOnYyOpHOAAAAAg=="),
		},
	}
	return NewCheckpoint("acme", "run-bench", records, cause, time.Now())
}

// BenchmarkSaveCheckpoint benchmarks checkpoint saving operations
func BenchmarkSaveCheckpoint(b *testing.B) {
	benchmarks := []struct {
		name    string
		records int
		msgSize int
	}{
		{"Small", 100, 64},
		{"Medium", 10000, 1024},
		{"LargeError", 10000, 64 * 1024},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			path := filepath.Join(b.TempDir(), "acme.checkpoint")
			cp := benchCheckpoint(bm.records, bm.msgSize)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if err := SaveCheckpoint(cp, path); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkLoadCheckpoint benchmarks checkpoint loading with validation
func BenchmarkLoadCheckpoint(b *testing.B) {
	path := filepath.Join(b.TempDir(), "acme.checkpoint")
	if err := SaveCheckpoint(benchCheckpoint(5000, 1024), path); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := LoadCheckpoint(path); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkChecksum benchmarks checksum calculation
func BenchmarkChecksum(b *testing.B) {
	cp := benchCheckpoint(5000, 1024)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := calculateChecksum(cp); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkConcurrentCheckpointSaves benchmarks saves across organizations
func BenchmarkConcurrentCheckpointSaves(b *testing.B) {
	dir := b.TempDir()

	b.ResetTimer()
	b.ReportAllocs()

	var workers atomic.Int64
	b.RunParallel(func(pb *testing.PB) {
		org := fmt.Sprintf("org-%d", workers.Add(1))
		path := CheckpointPath(dir, org)
		i := 0
		for pb.Next() {
			cp := NewCheckpoint(org, "run", i, errors.New("boom"), time.Now())
			if err := SaveCheckpoint(cp, path); err != nil {
				b.Fatal(err)
			}
			i++
		}
	})
}
