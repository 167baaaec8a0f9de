// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract selects which files of a commit are worth analyzing.
package extract

import (
	"log/slog"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/backend"
)

// DefaultSentinel is the marker file that never holds code.
const DefaultSentinel = "qn.txt"

// Filter decides whether a changed path is an analysis candidate.
//
// A path is kept when all of these hold:
//   - it does not end with the sentinel file name
//   - no segment starts with '.' (hidden files and directories)
//   - it has at least two segments, i.e. lives inside a folder
//   - its extension is in the language table
//   - it matches none of the Exclude patterns
//
// The zero value uses DefaultSentinel and no exclusions.
type Filter struct {
	// Sentinel overrides DefaultSentinel when non-empty.
	Sentinel string

	// Exclude holds doublestar patterns such as "vendor/**".
	Exclude []string

	Logger *slog.Logger
}

// Candidate is a kept path split into its folder and file name.
type Candidate struct {
	Path     string
	Folder   string
	FileName string
}

// Candidates filters paths, keeping their input order.
func (f Filter) Candidates(paths []string) []Candidate {
	var out []Candidate
	for _, p := range paths {
		c, ok := f.candidate(p)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Paths is Candidates returning only the paths.
func (f Filter) Paths(paths []string) []string {
	cands := f.Candidates(paths)
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Path)
	}
	return out
}

func (f Filter) candidate(p string) (Candidate, bool) {
	sentinel := f.Sentinel
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	if strings.HasSuffix(p, sentinel) {
		return Candidate{}, false
	}

	segments := strings.Split(p, "/")
	if len(segments) < 2 {
		return Candidate{}, false
	}
	for _, s := range segments {
		if strings.HasPrefix(s, ".") {
			return Candidate{}, false
		}
	}

	if !backend.IsSupported(p) {
		return Candidate{}, false
	}

	for _, pattern := range f.Exclude {
		matched, err := doublestar.Match(pattern, p)
		if err != nil {
			if f.Logger != nil {
				f.Logger.Warn("invalid exclude pattern", slog.String("pattern", pattern), slog.String("error", err.Error()))
			}
			continue
		}
		if matched {
			return Candidate{}, false
		}
	}

	return Candidate{Path: p, Folder: segments[0], FileName: path.Base(p)}, true
}

// Folder returns the first segment of a '/'-separated path.
func Folder(p string) string {
	folder, _, _ := strings.Cut(p, "/")
	return folder
}
