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

package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// AssertFileExists checks that a file exists
func AssertFileExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Expected file to exist: %s", path)
	}
}

// AssertFileNotExists checks that a file does not exist
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("Expected file to not exist: %s", path)
	}
}

// WriteConfig writes a harvest config file pointing at the mock API rooted at
// baseURL and returns its path. Retries are fast and the token is read from
// HARVEST_TEST_TOKEN. extra is appended verbatim, e.g. an organizations block.
func WriteConfig(t *testing.T, dir, baseURL, stateDir, extra string) string {
	t.Helper()

	content := fmt.Sprintf(`github:
  api_endpoint: %s
  graphql_endpoint: %s
  token_env: HARVEST_TEST_TOKEN
defaults:
  page_size: 100
  workers: 2
  request_timeout: 5s
  state_dir: %s
retry:
  max_retries: 2
  initial_backoff: 10ms
  max_backoff: 50ms
%s`, baseURL+"/", baseURL+"/graphql", stateDir, extra)

	path := filepath.Join(dir, "harvest.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}
