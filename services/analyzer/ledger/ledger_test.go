// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/datatypes"
	ledgerdb "github.com/AleutianAI/CodeAnalyzer/services/analyzer/storage/badger"
)

func commit(id string) datatypes.CommitRecord {
	return datatypes.CommitRecord{
		ID:            id,
		AuthorName:    "Ada",
		AuthorEmail:   "ada@example.com",
		Message:       "change " + id,
		Timestamp:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		ModifiedFiles: []string{"svc/a.py"},
	}
}

// =============================================================================
// Ledger encoding
// =============================================================================

func TestLedger_JSONKeepsInsertionOrder(t *testing.T) {
	l := New()
	for _, id := range []string{"zzz", "aaa", "mmm", "bbb"} {
		e, err := NewEntry(AnalysisSummary{FilesAnalyzed: 1}, commit(id))
		require.NoError(t, err)
		l.Put(id, e)
	}

	data, err := json.Marshal(l)
	require.NoError(t, err)

	decoded := New()
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, []string{"zzz", "aaa", "mmm", "bbb"}, decoded.IDs())

	last, ok := decoded.Last()
	assert.True(t, ok)
	assert.Equal(t, "bbb", last)
}

func TestLedger_PutExistingKeepsPosition(t *testing.T) {
	l := New()
	l.Put("a", Entry{})
	l.Put("b", Entry{})
	l.Put("a", Entry{AnalysisResults: json.RawMessage(`{"issues":3}`)})

	assert.Equal(t, []string{"a", "b"}, l.IDs())
	e, ok := l.Get("a")
	require.True(t, ok)
	s, err := e.Summary()
	require.NoError(t, err)
	assert.Equal(t, 3, s.Issues)
}

func TestLedger_UnmarshalVariants(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantIDs []string
		wantErr bool
	}{
		{"empty commits", `{"commits": {}}`, nil, false},
		{"null commits", `{"commits": null}`, nil, false},
		{"no commits key", `{"version": 1}`, nil, false},
		{"legacy timestamp", `{"commits": {"c1": {"analysis_results": {"files_analyzed": 2, "issues": 0}, "commit_info": {"timestamp": "2024-01-01 10:00:00"}}}}`, []string{"c1"}, false},
		{"commits is array", `{"commits": []}`, nil, true},
		{"not json", `{"commits": {`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			err := json.Unmarshal([]byte(tt.doc), l)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.wantIDs), l.Len())
			for i, id := range tt.wantIDs {
				assert.Equal(t, id, l.IDs()[i])
			}
		})
	}
}

func TestEntry_LegacyRoundTripPreservesRaw(t *testing.T) {
	doc := `{"commits":{"c1":{"analysis_results":{"files_analyzed":2,"issues":0,"extra":"kept"},"commit_info":{"timestamp":"2024-01-01 10:00:00"}}}}`
	l := New()
	require.NoError(t, json.Unmarshal([]byte(doc), l))

	out, err := json.Marshal(l)
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(out))
}

// =============================================================================
// Tracker with FilePersister
// =============================================================================

func TestTracker_FreshStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "analyzed_commits.json")
	tr := NewTracker(context.Background(), NewFilePersister(path), nil)

	assert.Empty(t, tr.AnalyzedIDs())
	assert.False(t, tr.IsAnalyzed("abc123"))
	_, ok := tr.LastAnalyzed()
	assert.False(t, ok)
}

func TestTracker_MarkAnalyzedPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "analyzed_commits.json")

	tr := NewTracker(ctx, NewFilePersister(path), nil)
	require.NoError(t, tr.MarkAnalyzed(ctx, "abc123", AnalysisSummary{FilesAnalyzed: 2, Issues: 1}, commit("abc123")))
	assert.True(t, tr.IsAnalyzed("abc123"))

	reloaded := NewTracker(ctx, NewFilePersister(path), nil)
	assert.Equal(t, []string{"abc123"}, reloaded.AnalyzedIDs())

	e, ok := reloaded.Entry("abc123")
	require.True(t, ok)
	s, err := e.Summary()
	require.NoError(t, err)
	assert.Equal(t, AnalysisSummary{FilesAnalyzed: 2, Issues: 1}, s)

	c, err := e.Commit()
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", c.AuthorEmail)
	assert.Equal(t, []string{"svc/a.py"}, c.ModifiedFiles)

	var raw map[string]map[string]map[string]json.RawMessage
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw["commits"]["abc123"], "analysis_results")
	assert.Contains(t, raw["commits"]["abc123"], "commit_info")
}

func TestTracker_OrderSurvivesReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.json")

	tr := NewTracker(ctx, NewFilePersister(path), nil)
	ids := []string{"f00", "a11", "c22", "b33", "e44"}
	for _, id := range ids {
		require.NoError(t, tr.MarkAnalyzed(ctx, id, AnalysisSummary{}, commit(id)))
	}

	reloaded := NewTracker(ctx, NewFilePersister(path), nil)
	assert.Equal(t, ids, reloaded.AnalyzedIDs())
	last, ok := reloaded.LastAnalyzed()
	assert.True(t, ok)
	assert.Equal(t, "e44", last)
}

func TestTracker_CorruptFileDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	tr := NewTracker(ctx, NewFilePersister(path), nil)
	assert.Empty(t, tr.AnalyzedIDs())

	require.NoError(t, tr.MarkAnalyzed(ctx, "x1", AnalysisSummary{}, commit("x1")))
	assert.Equal(t, []string{"x1"}, NewTracker(ctx, NewFilePersister(path), nil).AnalyzedIDs())
}

func TestTracker_Reset(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.json")

	tr := NewTracker(ctx, NewFilePersister(path), nil)
	require.NoError(t, tr.MarkAnalyzed(ctx, "x1", AnalysisSummary{}, commit("x1")))
	require.NoError(t, tr.MarkAnalyzed(ctx, "x2", AnalysisSummary{}, commit("x2")))

	require.NoError(t, tr.Reset(ctx))
	assert.Empty(t, tr.AnalyzedIDs())
	assert.Empty(t, NewTracker(ctx, NewFilePersister(path), nil).AnalyzedIDs())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"commits": {}}`, string(data))
}

type failingPersister struct {
	saves int
}

func (f *failingPersister) Load(context.Context) (*Ledger, error) {
	return nil, errors.New("disk unavailable")
}

func (f *failingPersister) Save(context.Context, *Ledger) error {
	f.saves++
	return errors.New("read-only filesystem")
}

func (f *failingPersister) Close() error { return nil }

func TestTracker_SaveFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	p := &failingPersister{}
	tr := NewTracker(ctx, p, nil)

	err := tr.MarkAnalyzed(ctx, "abc", AnalysisSummary{}, commit("abc"))
	assert.Error(t, err)
	assert.True(t, tr.IsAnalyzed("abc"))
	assert.Equal(t, 1, p.saves)

	assert.Error(t, tr.Reset(ctx))
}

// =============================================================================
// BadgerPersister
// =============================================================================

func openBadgerPersister(t *testing.T) *BadgerPersister {
	t.Helper()
	db, err := ledgerdb.Open(ledgerdb.InMemoryConfig())
	require.NoError(t, err)
	p := NewBadgerPersister(db)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestBadgerPersister_RoundTripOrder(t *testing.T) {
	ctx := context.Background()
	p := openBadgerPersister(t)

	tr := NewTracker(ctx, p, nil)
	ids := []string{"9f", "1a", "5c", "0d", "ee", "77", "31", "a0", "b1", "c2", "d3"}
	for _, id := range ids {
		require.NoError(t, tr.MarkAnalyzed(ctx, id, AnalysisSummary{FilesAnalyzed: 1}, commit(id)))
	}

	l, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids, l.IDs())

	e, ok := l.Get("5c")
	require.True(t, ok)
	c, err := e.Commit()
	require.NoError(t, err)
	assert.Equal(t, "5c", c.ID)
}

func TestBadgerPersister_ResetRemovesEntries(t *testing.T) {
	ctx := context.Background()
	p := openBadgerPersister(t)

	tr := NewTracker(ctx, p, nil)
	require.NoError(t, tr.MarkAnalyzed(ctx, "a", AnalysisSummary{}, commit("a")))
	require.NoError(t, tr.MarkAnalyzed(ctx, "b", AnalysisSummary{}, commit("b")))
	require.NoError(t, tr.Reset(ctx))

	l, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())

	require.NoError(t, tr.MarkAnalyzed(ctx, "c", AnalysisSummary{}, commit("c")))
	l, err = p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, l.IDs())
}
