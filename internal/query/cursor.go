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

package query

import "strconv"

// Cursor is an opaque continuation token, or its absence. The zero value
// requests the first page of a connection.
type Cursor struct {
	token string
	set   bool
}

// Start is the absent cursor.
var Start = Cursor{}

// After returns a cursor positioned after the node identified by token. The
// token is kept byte for byte as the server returned it.
func After(token string) Cursor {
	return Cursor{token: token, set: true}
}

// IsSet reports whether the cursor carries a token.
func (c Cursor) IsSet() bool { return c.set }

// Token returns the raw token, or "" for Start.
func (c Cursor) Token() string { return c.token }

// Ptr returns the token as a pointer, nil for Start.
func (c Cursor) Ptr() *string {
	if !c.set {
		return nil
	}
	t := c.token
	return &t
}

// variable is the JSON variable value: nil encodes as null.
func (c Cursor) variable() any {
	if !c.set {
		return nil
	}
	return c.token
}

func (c Cursor) String() string {
	if !c.set {
		return "null"
	}
	return strconv.Quote(c.token)
}

// Page is the pagination state a connection reports: whether another page
// exists and the cursor that fetches it.
type Page struct {
	HasNext bool
	Next    Cursor
}
