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

// Package output writes harvested pull request records in NDJSON (Newline
// Delimited JSON) format, one record per line. The store is exported once a
// run finishes, ordered by record ID so repeated exports diff cleanly.
//
// Example usage:
//
//	w, err := output.NewFileWriter("acme.ndjson")
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	if _, err := w.WriteStore(store); err != nil {
//	    return err
//	}
package output
