// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.String())
		})
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(99), slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.toSlogLevel())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"Warning", LevelWarn, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"CRITICAL", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_WithLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs", "code_analyzer.log")

	logger := New(Config{Level: LevelInfo, LogFile: path, Service: "codeanalyzer", Quiet: true})
	logger.Info("commit analyzed", "commit", "abc123")
	logger.Debug("filtered out")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "commit analyzed", record["msg"])
	assert.Equal(t, "abc123", record["commit"])
	assert.Equal(t, "codeanalyzer", record["service"])
}

func TestNew_UnwritableLogFileFallsBack(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	logger := New(Config{LogFile: filepath.Join(blocker, "sub", "log.txt")})
	assert.Empty(t, logger.Path())
	assert.NotNil(t, logger.Slog())
	assert.NoError(t, logger.Close())
}

func TestLogger_With_SharesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger := New(Config{LogFile: path, Quiet: true})

	child := logger.With("run_id", "r-1")
	child.Warn("ledger degraded")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id":"r-1"`)
	assert.Contains(t, string(data), `"level":"WARN"`)
}

func TestLogger_Close_Idempotent(t *testing.T) {
	logger := New(Config{LogFile: filepath.Join(t.TempDir(), "a.log")})
	assert.NotEmpty(t, logger.Path())
	assert.NoError(t, logger.Close())
	assert.NoError(t, logger.Close())
	assert.Empty(t, logger.Path())
}

// =============================================================================
// Multi-Handler Tests
// =============================================================================

func TestMultiHandler_FansOut(t *testing.T) {
	var text, js bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&text, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&js, &slog.HandlerOptions{Level: slog.LevelError}),
	}}

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("service", "t")}))
	logger.Info("only text")
	logger.Error("both")

	assert.Contains(t, text.String(), "only text")
	assert.Contains(t, text.String(), "both")
	assert.NotContains(t, js.String(), "only text")
	assert.Contains(t, js.String(), `"msg":"both"`)
	assert.Contains(t, js.String(), `"service":"t"`)
}

func TestMultiHandler_Enabled(t *testing.T) {
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "logs"), expandPath("~/logs"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
	assert.Equal(t, "relative/path", expandPath("relative/path"))
}
