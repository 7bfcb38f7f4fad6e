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

// Package config types define the configuration structures used throughout
// sirseer-harvest. These types represent settings that can be loaded from
// YAML configuration files, environment variables, or command-line flags.
package config

import "time"

// Config represents the complete configuration for sirseer-harvest.
type Config struct {
	GitHub        GitHubConfig         `yaml:"github"`
	Defaults      DefaultsConfig       `yaml:"defaults"`
	Organizations map[string]OrgConfig `yaml:"organizations"`
	Retry         RetryConfig          `yaml:"retry"`
	RateLimit     RateLimitConfig      `yaml:"rate_limit"`
}

// GitHubConfig contains GitHub-specific settings including API endpoints
// and authentication configuration. This allows easy configuration for
// GitHub Enterprise deployments by specifying custom endpoints.
type GitHubConfig struct {
	APIEndpoint     string `yaml:"api_endpoint"`
	GraphQLEndpoint string `yaml:"graphql_endpoint"`
	// TokenEnv names the environment variable holding the credential. The
	// credential itself never lives in the config file.
	TokenEnv string `yaml:"token_env"`
}

// DefaultsConfig contains settings that apply to every harvest unless
// overridden by organization-specific settings or command-line flags.
type DefaultsConfig struct {
	PageSize       int           `yaml:"page_size"`
	Workers        int           `yaml:"workers"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	StateDir       string        `yaml:"state_dir"`
}

// OrgConfig contains organization-specific overrides. Organizations whose
// pull requests carry very large bodies may need smaller pages to stay under
// GitHub's response size and complexity limits.
type OrgConfig struct {
	PageSize int `yaml:"page_size"`
}

// RetryConfig controls how transient API failures are retried.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// RateLimitConfig controls the rate limit preflight. With Preflight set the
// GraphQL budget is checked before the first query; AutoWait then decides
// whether an exhausted budget waits for the reset or fails the run.
type RateLimitConfig struct {
	Preflight bool `yaml:"preflight"`
	AutoWait  bool `yaml:"auto_wait"`
}

// DefaultConfig returns a Config with sensible defaults suitable for most
// use cases. These defaults are optimized for public GitHub.com usage but
// can be overridden for GitHub Enterprise or special requirements.
func DefaultConfig() *Config {
	return &Config{
		GitHub: GitHubConfig{
			APIEndpoint:     "https://api.github.com",
			GraphQLEndpoint: "https://api.github.com/graphql",
			TokenEnv:        "GITHUB_TOKEN",
		},
		Defaults: DefaultsConfig{
			PageSize:       100,
			Workers:        4,
			RequestTimeout: 30 * time.Second,
			StateDir:       "~/.sirseer/state",
		},
		Organizations: make(map[string]OrgConfig),
		Retry: RetryConfig{
			MaxRetries:     3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
	}
}
