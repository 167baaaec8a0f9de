// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import "fmt"

// ExitError carries a process exit code out of a command.
//
// # Description
//
// Returned by a command whose outcome was already reported to the user
// (for example a failed run whose summary was printed) so main can exit
// non-zero without printing the failure twice. Wrapped is nil in that
// case.
//
// # Example
//
//	var exitErr *ExitError
//	if errors.As(err, &exitErr) {
//	    os.Exit(exitErr.Code)
//	}
type ExitError struct {
	// Code is the process exit code.
	Code int

	// Wrapped is the underlying error, if it still needs printing.
	Wrapped error
}

// Error returns a formatted error message.
func (e *ExitError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("exit %d: %v", e.Code, e.Wrapped)
	}
	return fmt.Sprintf("exit %d", e.Code)
}

// Unwrap returns the underlying error.
func (e *ExitError) Unwrap() error {
	return e.Wrapped
}
