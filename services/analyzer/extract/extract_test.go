// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Paths(t *testing.T) {
	tests := []struct {
		name  string
		in    []string
		want  []string
		extra Filter
	}{
		{
			name: "mixed change set",
			in:   []string{"svcA/main.py", "README.md", "svcA/qn.txt", ".hidden/x.py", "svcB/lib/util.js"},
			want: []string{"svcA/main.py", "svcB/lib/util.js"},
		},
		{
			name: "root-level code file is skipped",
			in:   []string{"main.go", "cmd/main.go"},
			want: []string{"cmd/main.go"},
		},
		{
			name: "hidden segment anywhere",
			in:   []string{"svc/.github/x.py", "svc/ok.py"},
			want: []string{"svc/ok.py"},
		},
		{
			name: "unsupported extensions",
			in:   []string{"svc/a.md", "svc/b.yaml", "svc/c.rs", "svc/d.PY"},
			want: []string{"svc/c.rs"},
		},
		{
			name: "order preserved",
			in:   []string{"z/z.go", "a/a.go", "m/m.go"},
			want: []string{"z/z.go", "a/a.go", "m/m.go"},
		},
		{
			name:  "custom sentinel",
			in:    []string{"svc/notes.py", "svc/main.py"},
			want:  []string{"svc/main.py"},
			extra: Filter{Sentinel: "notes.py"},
		},
		{
			name:  "exclude patterns",
			in:    []string{"vendor/lib/a.go", "svc/gen/x_gen.go", "svc/x.go", "svc/y.go"},
			want:  []string{"svc/x.go"},
			extra: Filter{Exclude: []string{"vendor/**", "**/*_gen.go", "svc/y.go", "[bad"}},
		},
		{
			name: "empty input",
			in:   nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.extra.Paths(tt.in))
		})
	}
}

func TestFilter_CandidatesSplitFolder(t *testing.T) {
	got := Filter{}.Candidates([]string{"svcB/lib/util.js"})
	assert.Equal(t, []Candidate{{Path: "svcB/lib/util.js", Folder: "svcB", FileName: "util.js"}}, got)
}

func TestFolder(t *testing.T) {
	assert.Equal(t, "svcA", Folder("svcA/main.py"))
	assert.Equal(t, "svcB", Folder("svcB/lib/util.js"))
	assert.Equal(t, "root.go", Folder("root.go"))
}
