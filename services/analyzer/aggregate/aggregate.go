// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package aggregate turns per-file reports into per-folder notification
// batches.
package aggregate

import (
	"path"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/datatypes"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/extract"
)

// Escalate wraps report as an ErrorReport when it has issues.
//
// repoPath is the repository-relative path the report belongs to; it
// decides the folder. Failed analyses are never escalated.
func Escalate(repoPath string, report datatypes.FileReport) (datatypes.ErrorReport, bool) {
	if report.Failed() || !report.HasIssues() {
		return datatypes.ErrorReport{}, false
	}
	return datatypes.ErrorReport{
		Folder:   extract.Folder(repoPath),
		FileName: path.Base(repoPath),
		FilePath: repoPath,
		Analysis: report,
	}, true
}

// ByFolder groups error reports by folder.
//
// Batches are ordered by the first appearance of their folder and each
// batch keeps its reports in input order.
func ByFolder(reports []datatypes.ErrorReport) []datatypes.FolderBatch {
	index := make(map[string]int)
	var batches []datatypes.FolderBatch
	for _, r := range reports {
		i, ok := index[r.Folder]
		if !ok {
			i = len(batches)
			index[r.Folder] = i
			batches = append(batches, datatypes.FolderBatch{Folder: r.Folder})
		}
		batches[i].Reports = append(batches[i].Reports, r)
	}
	return batches
}

// CountFindings sums the findings of every report.
func CountFindings(reports []datatypes.ErrorReport) int {
	n := 0
	for _, r := range reports {
		n += len(r.Analysis.Errors)
	}
	return n
}
