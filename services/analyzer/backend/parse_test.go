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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/datatypes"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantErrors  bool
		wantSev     datatypes.Severity
		wantSummary string
		wantItems   int
	}{
		{
			name:       "object inside prose",
			raw:        `Some prose with {"has_errors": true, "severity": "high"} extra`,
			wantErrors: true,
			wantSev:    datatypes.SeverityHigh,
		},
		{
			name:        "no braces",
			raw:         "plain text with no braces",
			wantSummary: "plain text with no braces",
		},
		{
			name:        "malformed object",
			raw:         `{"has_errors": true, "severity": }`,
			wantSummary: `{"has_errors": true, "severity": }`,
		},
		{
			name: "fenced full report",
			raw: "```json\n" + `{
  "has_errors": true,
  "severity": "critical",
  "errors": [
    {"line": 4, "type": "security_issue", "severity": "critical", "message": "SQL built from input", "suggestion": "Use parameters"},
    {"line": null, "type": "performance", "severity": "low", "message": "N+1 query"}
  ],
  "summary": "Two problems"
}` + "\n```",
			wantErrors:  true,
			wantSev:     datatypes.SeverityCritical,
			wantSummary: "Two problems",
			wantItems:   2,
		},
		{
			name:        "non-object findings are skipped",
			raw:         `{"has_errors": "true", "errors": ["just a string", {"message": "real"}], "summary": "s"}`,
			wantErrors:  true,
			wantSummary: "s",
			wantItems:   1,
		},
		{
			name:        "closing brace before opening",
			raw:         "} then {",
			wantSummary: "} then {",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseResponse(tt.raw)
			assert.Equal(t, tt.wantErrors, got.HasErrors)
			assert.Equal(t, tt.wantSev, got.Severity)
			assert.Equal(t, tt.wantSummary, got.Summary)
			assert.Len(t, got.Errors, tt.wantItems)
			assert.Empty(t, got.Error)
		})
	}
}

func TestParseResponse_FindingFields(t *testing.T) {
	got := ParseResponse(`{"has_errors": true, "errors": [{"line": "12", "type": "logic_error", "severity": "HIGH", "message": "off by one", "suggestion": "use <"}]}`)
	require.Len(t, got.Errors, 1)

	f := got.Errors[0]
	assert.Equal(t, datatypes.Line(12), f.Line)
	assert.Equal(t, datatypes.FindingLogic, f.Type)
	assert.Equal(t, datatypes.SeverityHigh, f.Severity.Normalize())
	assert.Equal(t, "off by one", f.Message)
	assert.Equal(t, "use <", f.Suggestion)
}

func TestExtractJSON_Greedy(t *testing.T) {
	span, ok := ExtractJSON(`a {"x": {"y": 1}} b {"z": 2} c`)
	require.True(t, ok)
	assert.Equal(t, `{"x": {"y": 1}} b {"z": 2}`, span)

	_, ok = ExtractJSON("nothing here")
	assert.False(t, ok)
}

func TestLanguageFor(t *testing.T) {
	tests := map[string]string{
		"/repo/svc/main.py":    "python",
		"/repo/web/app.ts":     "typescript",
		"/repo/lib/x.rs":       "rust",
		"/repo/ios/View.swift": "swift",
		"/repo/a/b.c":          "c",
		"/repo/a/b.cpp":        "cpp",
	}
	for path, want := range tests {
		got, ok := LanguageFor(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}

	for _, path := range []string{"/repo/README.md", "/repo/Makefile", "/repo/a/B.PY"} {
		_, ok := LanguageFor(path)
		assert.False(t, ok, path)
	}

	assert.True(t, IsSupported("svc/handler.go"))
	assert.False(t, IsSupported("svc/handler.go.orig"))
	assert.Len(t, SupportedExtensions(), 11)
}

func TestRenderPrompt(t *testing.T) {
	prompt, err := RenderPrompt("python", "print('hi')", "/repo/svc/a.py")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, "You are an expert code reviewer."))
	assert.Contains(t, prompt, "```python\nprint('hi')\n```")
	assert.Contains(t, prompt, "File: /repo/svc/a.py")
	assert.Contains(t, prompt, "Language: python")
	assert.Contains(t, prompt, `"has_errors": boolean`)
	assert.NotContains(t, prompt, "&#39;")
}
