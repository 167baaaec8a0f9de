// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// =============================================================================
// Severity
// =============================================================================

// Severity grades a finding or a whole file.
//
// Values outside the known set are kept verbatim; backends are free-form.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityNone     Severity = "none"
)

// Normalize lower-cases and trims the severity. An empty value stays empty.
func (s Severity) Normalize() Severity {
	return Severity(strings.ToLower(strings.TrimSpace(string(s))))
}

// Rank orders severities from none (0) to critical (4). Unknown values rank
// with medium so they are neither hidden nor over-reported.
func (s Severity) Rank() int {
	switch s.Normalize() {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	case SeverityNone, "":
		return 0
	default:
		return 2
	}
}

// =============================================================================
// Finding Type
// =============================================================================

// FindingType classifies a finding, e.g. "logic_error" or "security_issue".
type FindingType string

const (
	FindingLogic        FindingType = "logic_error"
	FindingSecurity     FindingType = "security_issue"
	FindingPerformance  FindingType = "performance"
	FindingBestPractice FindingType = "best_practice"
	FindingSyntax       FindingType = "syntax_error"
)

var titleCaser = cases.Title(language.English)

// Title renders the type for humans: "logic_error" becomes "Logic Error".
func (f FindingType) Title() string {
	if f == "" {
		return "Unknown"
	}
	return titleCaser.String(strings.ReplaceAll(string(f), "_", " "))
}

// =============================================================================
// Line Number
// =============================================================================

// LineNumber is a 1-based source line that may be absent.
//
// Backends send numbers, numeric strings, or null; anything else decodes
// as absent rather than failing the whole report.
type LineNumber struct {
	Value int
	Valid bool
}

// Line returns a present line number.
func Line(n int) LineNumber {
	return LineNumber{Value: n, Valid: true}
}

// MarshalJSON writes the number, or null when absent.
func (l LineNumber) MarshalJSON() ([]byte, error) {
	if !l.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(l.Value)), nil
}

// UnmarshalJSON accepts 12, 12.0, "12", and null.
func (l *LineNumber) UnmarshalJSON(data []byte) error {
	*l = LineNumber{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*l = Line(int(f))
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*l = Line(n)
		}
	}
	return nil
}

// String returns the number or "N/A".
func (l LineNumber) String() string {
	if !l.Valid {
		return "N/A"
	}
	return strconv.Itoa(l.Value)
}

// =============================================================================
// Reports
// =============================================================================

// FindingItem is one issue reported by a backend.
type FindingItem struct {
	Line       LineNumber  `json:"line"`
	Type       FindingType `json:"type"`
	Severity   Severity    `json:"severity"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// FileReport is the outcome of analyzing one file.
//
// Exactly one of two shapes is produced: a successful analysis (Error
// empty) or a failure (Error set, HasErrors false, no findings). A
// failure is not an issue and never triggers a notification.
type FileReport struct {
	FilePath  string        `json:"file"`
	Language  string        `json:"language,omitempty"`
	HasErrors bool          `json:"has_errors"`
	Severity  Severity      `json:"severity,omitempty"`
	Errors    []FindingItem `json:"errors,omitempty"`
	Summary   string        `json:"summary,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Failed reports whether the analysis itself failed.
func (r FileReport) Failed() bool {
	return r.Error != ""
}

// HasIssues reports whether the file should be escalated: the backend
// flagged it or returned at least one finding.
func (r FileReport) HasIssues() bool {
	return r.HasErrors || len(r.Errors) > 0
}

// ErrorReport ties a file with issues to the folder it is notified under.
type ErrorReport struct {
	Folder   string     `json:"folder_name"`
	FileName string     `json:"file_name"`
	FilePath string     `json:"file_path"`
	Analysis FileReport `json:"analysis"`
}

// FolderBatch groups the error reports of one commit that share a
// top-level folder. One batch becomes one notification.
type FolderBatch struct {
	Folder  string        `json:"folder_name"`
	Reports []ErrorReport `json:"files"`
}

// Analyses returns the file reports of the batch in order.
func (b FolderBatch) Analyses() []FileReport {
	out := make([]FileReport, 0, len(b.Reports))
	for _, r := range b.Reports {
		out = append(out, r.Analysis)
	}
	return out
}
