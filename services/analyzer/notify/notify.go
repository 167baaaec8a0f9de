// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package notify delivers per-folder findings to commit authors.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/datatypes"
)

// ErrNoRecipient is returned for a notification without an address.
var ErrNoRecipient = errors.New("notification has no recipient")

// Notification is one message about one folder of one commit.
type Notification struct {
	Recipient  string
	AuthorName string
	Branch     string
	Folder     string

	// CommitID is informational and may be empty.
	CommitID string

	// Files holds the reports with findings, in analysis order.
	Files []datatypes.FileReport
}

// Subject returns the message subject line.
func (n Notification) Subject() string {
	return fmt.Sprintf("[Code Analyzer] Issues found in %s branch - %s", n.Branch, n.Folder)
}

// Notifier delivers notifications.
//
// # Description
//
// Delivery failures are returned to the caller, who decides whether they
// matter. Implementations own rendering.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Checker verifies a notifier can deliver without sending anything.
type Checker interface {
	Check(ctx context.Context) error
}
