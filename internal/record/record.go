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

// Package record defines the normalized pull request record and the keyed
// store a traversal run accumulates records into.
package record

import "time"

// Record is a normalized pull request. Every field is always present; fields
// missing from the response hold their zero value. Repository is a copy of the
// owning repository's name, not a reference to it.
type Record struct {
	ID               string    `json:"id"`
	URL              string    `json:"url"`
	Title            string    `json:"title"`
	Number           int       `json:"number"`
	State            string    `json:"state"`
	Additions        int       `json:"additions"`
	ChangedFiles     int       `json:"changed_files"`
	Deletions        int       `json:"deletions"`
	ActiveLockReason string    `json:"active_lock_reason"`
	Closed           bool      `json:"closed"`
	ClosedAt         time.Time `json:"closed_at"`
	CreatedAt        time.Time `json:"created_at"`
	LastEditedAt     time.Time `json:"last_edited_at"`
	Locked           bool      `json:"locked"`
	Merged           bool      `json:"merged"`
	Mergeable        bool      `json:"mergeable"`
	MergedAt         time.Time `json:"merged_at"`
	PublishedAt      time.Time `json:"published_at"`
	Repository       string    `json:"repository"`
	UpdatedAt        time.Time `json:"updated_at"`
	BodyText         string    `json:"body_text"`
	Author           string    `json:"author"`
}
