// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for configuration values and stored
// identifiers that end up as arguments of git subprocess calls. A value
// starting with "-" would otherwise be parsed as an option.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// commitIDPattern matches abbreviated or full SHA-1 and SHA-256 object names.
var commitIDPattern = regexp.MustCompile(`^[0-9a-f]{4,64}$`)

// ValidateBranch validates a branch name before it is passed to git.
//
// The rules are a subset of git check-ref-format:
//   - not empty, not "@"
//   - does not start with "-" or "/" and does not end with "/" or "."
//   - no "..", "@{", "//" or ".lock" suffix
//   - no whitespace, control characters, or any of ~ ^ : ? * [ \
//
// Example:
//
//	if err := validation.ValidateBranch(cfg.Branch); err != nil {
//	    return nil, fmt.Errorf("invalid branch: %w", err)
//	}
//	// Safe to use as a git argument
func ValidateBranch(name string) error {
	if name == "" {
		return fmt.Errorf("branch cannot be empty")
	}
	if name == "@" {
		return fmt.Errorf("invalid branch name: %q", name)
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("invalid branch name: %q (must not start with '-')", name)
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") ||
		strings.HasSuffix(name, ".") || strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("invalid branch name: %q", name)
	}
	for _, seq := range []string{"..", "@{", "//"} {
		if strings.Contains(name, seq) {
			return fmt.Errorf("invalid branch name: %q (contains %q)", name, seq)
		}
	}
	for _, r := range name {
		if r <= ' ' || r == 0x7f || strings.ContainsRune("~^:?*[\\", r) {
			return fmt.Errorf("invalid branch name: %q (contains %q)", name, r)
		}
	}
	return nil
}

// ValidateCommitID validates a hexadecimal commit hash.
// Returns an error for anything git could read as an option or revision range.
func ValidateCommitID(id string) error {
	if id == "" {
		return fmt.Errorf("commit id cannot be empty")
	}
	if !commitIDPattern.MatchString(id) {
		return fmt.Errorf("invalid commit id: %q (must be 4-64 lowercase hex chars)", id)
	}
	return nil
}

// SanitizeBranch trims surrounding whitespace and validates the result.
//
// Use this for values read from configuration files and the environment:
//
//	branch, err := validation.SanitizeBranch(os.Getenv("REPO_BRANCH"))
//	if err != nil {
//	    return err
//	}
func SanitizeBranch(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if err := ValidateBranch(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}
