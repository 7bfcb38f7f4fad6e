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

package github

import (
	"context"

	"github.com/sirseerhq/sirseer-harvest/internal/query"
)

// Transport executes one GraphQL request against GitHub.
// This interface allows for easy mocking in tests.
type Transport interface {
	// Execute sends req and returns the decoded response. It fails with
	// *errors.TransportError on a non-success status, *errors.QueryError when
	// GraphQL reports errors without data, and *errors.ProtocolShapeError when
	// the body cannot be decoded.
	Execute(ctx context.Context, req query.Request) (*Response, error)
}
