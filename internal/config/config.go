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

// Package config provides configuration management for sirseer-harvest with
// support for multiple configuration sources and a well-defined precedence
// order.
//
// Configuration sources (in precedence order, highest to lowest):
//  1. Command-line flags
//  2. Organization-specific configuration (page size only)
//  3. Environment variables
//  4. Global configuration file
//  5. Built-in defaults
//
// Invalid values are reported as *errors.ConfigError before any network call
// is made.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	harvesterrors "github.com/sirseerhq/sirseer-harvest/internal/errors"
	"github.com/sirseerhq/sirseer-harvest/internal/query"
)

// LoadConfig loads configuration from multiple sources and applies them in
// the correct precedence order. If configPath is provided, it loads from
// that specific file. Otherwise, it searches standard locations:
//   - .sirseer-harvest.yaml (current directory)
//   - .sirseer-harvest.yml (current directory)
//   - ~/.sirseer/harvest.yaml
//   - ~/.sirseer/harvest.yml
//
// Environment variables are applied after loading the config file, allowing
// runtime overrides. Path expansion (~ and environment variables) is performed
// on directory paths.
//
// Returns an error if the specified config file cannot be loaded, but will
// succeed with defaults if no config file is found in standard locations.
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Try to load config file if path is provided
	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		// Try default locations
		defaultPaths := []string{
			".sirseer-harvest.yaml",
			".sirseer-harvest.yml",
			filepath.Join(os.Getenv("HOME"), ".sirseer", "harvest.yaml"),
			filepath.Join(os.Getenv("HOME"), ".sirseer", "harvest.yml"),
		}

		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := loadConfigFile(path, cfg); err != nil {
					return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
				}
				break
			}
		}
	}

	// Apply environment variable overrides
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.Defaults.StateDir = expandPath(cfg.Defaults.StateDir)

	return cfg, nil
}

// loadConfigFile reads and parses a YAML config file
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config. A
// malformed numeric override is a configuration error rather than being
// silently ignored.
func applyEnvOverrides(cfg *Config) error {
	// GitHub endpoints
	if endpoint := os.Getenv("GITHUB_API_ENDPOINT"); endpoint != "" {
		cfg.GitHub.APIEndpoint = endpoint
	}
	if endpoint := os.Getenv("GITHUB_GRAPHQL_ENDPOINT"); endpoint != "" {
		cfg.GitHub.GraphQLEndpoint = endpoint
	}

	// Defaults
	if pageSize := os.Getenv("SIRSEER_PAGE_SIZE"); pageSize != "" {
		size, err := parsePositiveInt(pageSize)
		if err != nil {
			return &harvesterrors.ConfigError{Field: "SIRSEER_PAGE_SIZE", Reason: err.Error()}
		}
		cfg.Defaults.PageSize = size
	}
	if workers := os.Getenv("SIRSEER_WORKERS"); workers != "" {
		n, err := parsePositiveInt(workers)
		if err != nil {
			return &harvesterrors.ConfigError{Field: "SIRSEER_WORKERS", Reason: err.Error()}
		}
		cfg.Defaults.Workers = n
	}
	if stateDir := os.Getenv("SIRSEER_STATE_DIR"); stateDir != "" {
		cfg.Defaults.StateDir = stateDir
	}

	// Rate limit settings
	if autoWait := os.Getenv("SIRSEER_RATE_LIMIT_AUTO_WAIT"); autoWait != "" {
		cfg.RateLimit.AutoWait = parseBool(autoWait)
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home := os.Getenv("HOME")
		if home == "" {
			home = os.Getenv("USERPROFILE") // Windows
		}
		path = filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// parsePositiveInt parses a string to a positive integer
func parsePositiveInt(s string) (int, error) {
	var i int
	_, err := fmt.Sscanf(s, "%d", &i)
	if err != nil {
		return 0, fmt.Errorf("failed to parse integer from '%s': %w", s, err)
	}
	if i <= 0 {
		return 0, fmt.Errorf("value must be positive, got: %d", i)
	}
	return i, nil
}

// parseBool parses various boolean representations
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "yes" || s == "1" || s == "on"
}

// PageSize returns the effective page size for an organization, taking
// organization-specific overrides into account.
func (c *Config) PageSize(org string) int {
	if orgConfig, ok := c.Organizations[org]; ok && orgConfig.PageSize > 0 {
		return orgConfig.PageSize
	}
	return c.Defaults.PageSize
}

// Validate checks if the configuration contains valid values. It ensures
// page sizes are within GitHub's limits, endpoints are not empty, and the
// retry and concurrency settings are usable.
func (c *Config) Validate() error {
	if err := validatePageSize("defaults.page_size", c.Defaults.PageSize); err != nil {
		return err
	}
	for org, orgConfig := range c.Organizations {
		if orgConfig.PageSize == 0 {
			continue
		}
		if err := validatePageSize(fmt.Sprintf("organizations.%s.page_size", org), orgConfig.PageSize); err != nil {
			return err
		}
	}
	if c.Defaults.Workers <= 0 {
		return &harvesterrors.ConfigError{Field: "defaults.workers", Reason: fmt.Sprintf("must be positive, got %d", c.Defaults.Workers)}
	}
	if c.Defaults.RequestTimeout <= 0 {
		return &harvesterrors.ConfigError{Field: "defaults.request_timeout", Reason: "must be positive"}
	}
	if c.GitHub.APIEndpoint == "" {
		return &harvesterrors.ConfigError{Field: "github.api_endpoint", Reason: "cannot be empty"}
	}
	if c.GitHub.GraphQLEndpoint == "" {
		return &harvesterrors.ConfigError{Field: "github.graphql_endpoint", Reason: "cannot be empty"}
	}
	if c.Retry.MaxRetries < 0 {
		return &harvesterrors.ConfigError{Field: "retry.max_retries", Reason: fmt.Sprintf("cannot be negative, got %d", c.Retry.MaxRetries)}
	}
	if c.Retry.InitialBackoff <= 0 || c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return &harvesterrors.ConfigError{Field: "retry", Reason: "backoff must be positive and max_backoff at least initial_backoff"}
	}
	return nil
}

func validatePageSize(field string, size int) error {
	if size <= 0 {
		return &harvesterrors.ConfigError{Field: field, Reason: fmt.Sprintf("must be positive, got %d", size)}
	}
	if size > query.MaxPageSize {
		return &harvesterrors.ConfigError{Field: field, Reason: fmt.Sprintf("%d exceeds GitHub API limit of %d", size, query.MaxPageSize)}
	}
	return nil
}
