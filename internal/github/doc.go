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

// Package github talks to GitHub's GraphQL API on behalf of the harvester.
//
// The package includes:
//   - A Transport interface that executes one prepared query.Request
//   - HTTPTransport, a bearer-authenticated JSON POST implementation
//   - RetryTransport, which repeats rate limited and transient failures
//   - InfoClient and RateLimitChecker for the small auxiliary queries
//   - MockTransport and response builders for testing
//
// Response types keep every field as a pointer so that an absent key and an
// explicit null both decode to nil and can be told apart from zero values.
//
// Basic usage:
//
//	transport := github.NewRetryTransport(
//	    github.NewHTTPTransport(token, github.DefaultGraphQLEndpoint),
//	    github.DefaultRetryConfig(), logger)
//	resp, err := transport.Execute(ctx, builder.OrganizationPage(query.Start))
//	if err != nil {
//	    // Handle error
//	}
package github
