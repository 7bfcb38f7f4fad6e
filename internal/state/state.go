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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CheckpointPath returns the checkpoint file for org inside stateDir.
// Returns: <stateDir>/<org>.checkpoint
func CheckpointPath(stateDir, org string) string {
	// Replace path separators for filesystem compatibility
	safeOrg := strings.NewReplacer("/", "-", `\`, "-").Replace(org)
	return filepath.Join(stateDir, safeOrg+".checkpoint")
}

// SaveCheckpoint atomically saves cp to disk with integrity validation.
// It uses a write-to-temp-and-rename pattern to ensure atomicity.
// The checksum is calculated and stored to detect corruption.
func SaveCheckpoint(cp *Checkpoint, path string) error {
	// Set version to current
	cp.Version = CurrentVersion

	// Calculate checksum before adding it to the struct
	checksum, err := calculateChecksum(cp)
	if err != nil {
		return fmt.Errorf("failed to calculate checksum: %w", err)
	}
	cp.Checksum = checksum

	// Ensure the directory exists
	if mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755); mkdirErr != nil {
		return fmt.Errorf("failed to create state directory: %w", mkdirErr)
	}

	// Create a temporary file in the same directory
	tempFile := path + ".tmp"

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// Write to temporary file with restricted permissions
	file, err := os.OpenFile(tempFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to write temporary checkpoint file: %w", err)
	}

	// Sync to ensure data is flushed to disk
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// LoadCheckpoint reads and validates a checkpoint from disk.
// It verifies the checksum and version compatibility.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNoCheckpoint, path)
		}
		return nil, fmt.Errorf("failed to read checkpoint file %s: %w", path, err)
	}

	var cp Checkpoint
	if unmarshalErr := json.Unmarshal(data, &cp); unmarshalErr != nil {
		return nil, fmt.Errorf("checkpoint file is corrupted (invalid JSON): %w", unmarshalErr)
	}

	// Check version compatibility
	if cp.Version != CurrentVersion {
		return nil, fmt.Errorf("checkpoint file version (%d) is incompatible with current version (%d)",
			cp.Version, CurrentVersion)
	}

	// Verify checksum
	savedChecksum := cp.Checksum
	calculatedChecksum, err := calculateChecksum(&cp)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum for validation: %w", err)
	}
	if savedChecksum != calculatedChecksum {
		return nil, fmt.Errorf("checkpoint file is corrupted (checksum mismatch)")
	}

	return &cp, nil
}

// DeleteCheckpoint removes a checkpoint. A missing file is not an error.
func DeleteCheckpoint(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}
	return nil
}

// calculateChecksum computes the SHA256 hash of the checkpoint content.
// The checksum field itself is excluded from the calculation.
func calculateChecksum(cp *Checkpoint) (string, error) {
	cpCopy := *cp
	cpCopy.Checksum = ""

	// Marshal to JSON for consistent hashing
	data, err := json.Marshal(cpCopy)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
