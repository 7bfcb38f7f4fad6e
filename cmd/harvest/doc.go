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

// Package main implements the sirseer-harvest command-line interface.
// This tool collects pull request data for every repository of a GitHub
// organization using nested cursor pagination over the GraphQL API.
//
// The CLI supports:
//   - Fetching every pull request of an organization (fetch)
//   - Bounded concurrency across repositories (--workers)
//   - Optional NDJSON export and run metadata
//   - Failure checkpoints that name the request that failed (inspect)
//
// Usage:
//
//	sirseer-harvest fetch <org> [flags]
//	sirseer-harvest inspect <org>
//
// Example:
//
//	export GITHUB_TOKEN=your_token
//	sirseer-harvest fetch ramda --output ramda.ndjson
//
// Exit codes:
//   - 0: Success
//   - 1: General error
//   - 2: Authentication, authorization, rate limit or configuration error
//   - 3: Network error
package main
