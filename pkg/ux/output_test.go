// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError} {
		assert.Contains(t, icon.Render(), string(icon))
	}
	assert.Equal(t, "", IconNone.Render())
}

func TestBoolIcon(t *testing.T) {
	assert.Equal(t, IconSuccess, BoolIcon(true))
	assert.Equal(t, IconError, BoolIcon(false))
}

func TestDetectMode_File(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, ModePlain, DetectMode(f))
}

func TestDetectMode_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, ModePlain, DetectMode(os.Stdout))
}

func TestPrinter_PlainMessages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModePlain)

	p.Success("done")
	p.Warning("careful")
	p.Error("broken")

	assert.Equal(t, "OK: done\nWARN: careful\nERROR: broken\n", buf.String())
	assert.False(t, p.Styled())
}

func TestPrinter_PlainTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModePlain)

	p.Table("Analysis Summary", []Row{
		{Key: "status", Value: "success", Status: IconSuccess},
		{Key: "commits_analyzed", Value: "2"},
	})

	assert.Equal(t, "\n=== Analysis Summary ===\nstatus: success\ncommits_analyzed: 2\n", buf.String())
}

func TestPrinter_StyledTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeStyled)
	require.True(t, p.Styled())

	p.Table("Setup Test Results", []Row{
		{Key: "backend_configured", Value: "true", Status: IconSuccess},
		{Key: "repo", Value: "unreachable", Status: IconError},
	})

	out := buf.String()
	assert.Contains(t, out, "Setup Test Results")
	assert.Contains(t, out, "backend_configured")
	assert.Contains(t, out, "unreachable")
	assert.Contains(t, out, string(IconError))
}

func TestPrinter_StyledMessages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeStyled)

	p.Success("done")
	p.Error("broken")

	assert.Contains(t, buf.String(), "done")
	assert.Contains(t, buf.String(), string(IconSuccess))
	assert.Contains(t, buf.String(), string(IconError))
}
