// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the records passed between the analyzer stages:
// commits read from source control, per-file reports produced by a
// backend, and the folder batches handed to the notifier.
package datatypes

import (
	"strings"
	"time"
)

// CommitRecord describes one commit on the watched branch.
//
// The JSON field names are the ones stored under "commit_info" in the
// tracking ledger.
type CommitRecord struct {
	// ID is the full commit hash.
	ID string `json:"hash"`

	AuthorName  string    `json:"author_name"`
	AuthorEmail string    `json:"author_email"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`

	// ModifiedFiles are repository-relative, '/'-separated paths in the
	// order source control reported them.
	ModifiedFiles []string `json:"modified_files"`
}

// ShortID returns the first eight characters of the commit hash.
func (c CommitRecord) ShortID() string {
	if len(c.ID) <= 8 {
		return c.ID
	}
	return c.ID[:8]
}

// Subject returns the first line of the commit message.
func (c CommitRecord) Subject() string {
	subject, _, _ := strings.Cut(c.Message, "\n")
	return strings.TrimSpace(subject)
}
