// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"path"
	"path/filepath"
	"sort"
)

// languages maps a file extension (with the dot, case-sensitive) to the
// language name used in prompts and reports.
var languages = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".ts":    "typescript",
	".java":  "java",
	".cpp":   "cpp",
	".c":     "c",
	".go":    "go",
	".rs":    "rust",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
}

// LanguageFor returns the language of an OS file path.
func LanguageFor(file string) (string, bool) {
	lang, ok := languages[filepath.Ext(file)]
	return lang, ok
}

// IsSupported reports whether a repository-relative, '/'-separated path
// has a supported extension.
func IsSupported(repoPath string) bool {
	_, ok := languages[path.Ext(repoPath)]
	return ok
}

// SupportedExtensions returns the known extensions in sorted order.
func SupportedExtensions() []string {
	out := make([]string, 0, len(languages))
	for ext := range languages {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
