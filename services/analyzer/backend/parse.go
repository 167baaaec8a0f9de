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
	"bytes"
	"encoding/json"
	"strings"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/datatypes"
)

// ExtractJSON returns the span from the first '{' to the last '}' of raw.
//
// Models often wrap the object in prose or a code fence; the widest span
// is taken so that nested objects stay intact.
func ExtractJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(raw, '}')
	if end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// wireReport is the object a model is asked to produce.
type wireReport struct {
	HasErrors flexBool          `json:"has_errors"`
	Severity  string            `json:"severity"`
	Errors    []json.RawMessage `json:"errors"`
	Summary   string            `json:"summary"`
}

// ParseResponse turns raw model output into a FileReport.
//
// # Description
//
// The JSON object embedded in raw is decoded leniently: list items that
// are not objects are skipped and line numbers may be strings. When no
// object can be found or decoded, the whole text becomes the summary of
// a report with HasErrors false.
//
// FilePath and Language are left for the caller to fill in.
func ParseResponse(raw string) datatypes.FileReport {
	fallback := datatypes.FileReport{HasErrors: false, Summary: raw}

	span, ok := ExtractJSON(raw)
	if !ok {
		return fallback
	}

	var w wireReport
	if err := json.Unmarshal([]byte(span), &w); err != nil {
		return fallback
	}

	report := datatypes.FileReport{
		HasErrors: bool(w.HasErrors),
		Severity:  datatypes.Severity(w.Severity),
		Summary:   w.Summary,
	}
	for _, item := range w.Errors {
		if len(bytes.TrimSpace(item)) == 0 || bytes.TrimSpace(item)[0] != '{' {
			continue
		}
		var f datatypes.FindingItem
		if err := json.Unmarshal(item, &f); err != nil {
			continue
		}
		report.Errors = append(report.Errors, f)
	}
	return report
}

// flexBool decodes true/false as well as their string forms.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(data)), `"`)) {
	case "true", "yes", "1":
		*b = true
	default:
		*b = false
	}
	return nil
}
