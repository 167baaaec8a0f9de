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

import (
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/AleutianAI/CodeAnalyzer/pkg/ux"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/pipeline"
)

func summaryRows(s pipeline.RunSummary) []ux.Row {
	rows := []ux.Row{
		{Key: "run_id", Value: s.RunID},
		{Key: "timestamp", Value: s.Timestamp.Format(time.RFC3339)},
		{Key: "commits_analyzed", Value: strconv.Itoa(s.CommitsAnalyzed)},
		{Key: "issues_found", Value: strconv.Itoa(s.IssuesFound)},
		{Key: "emails_sent", Value: strconv.Itoa(s.EmailsSent)},
		{Key: "status", Value: string(s.Status), Status: ux.BoolIcon(!s.Failed())},
		{Key: "duration", Value: s.Duration.Round(time.Millisecond).String()},
	}
	if s.Error != "" {
		rows = append(rows, ux.Row{Key: "error", Value: s.Error, Status: ux.IconError})
	}
	return rows
}

// setupRows lists the three checks, then details in key order.
func setupRows(r pipeline.SetupReport) []ux.Row {
	rows := []ux.Row{
		{Key: "backend_configured", Value: strconv.FormatBool(r.BackendConfigured), Status: ux.BoolIcon(r.BackendConfigured)},
		{Key: "email_configured", Value: strconv.FormatBool(r.EmailConfigured), Status: ux.BoolIcon(r.EmailConfigured)},
		{Key: "repo_accessible", Value: strconv.FormatBool(r.RepoAccessible), Status: ux.BoolIcon(r.RepoAccessible)},
	}
	for _, k := range slices.Sorted(maps.Keys(r.Details)) {
		rows = append(rows, ux.Row{Key: "details." + k, Value: r.Details[k]})
	}
	return rows
}
