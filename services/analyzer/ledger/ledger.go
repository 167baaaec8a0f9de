// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ledger records which commits have been analyzed.
//
// # Description
//
// The ledger is an insertion-ordered map from commit hash to Entry. Its
// last key is the resume point of the next run, so order must survive a
// save/load round trip. Go maps do not keep order, so Ledger keeps an
// explicit key slice and encodes itself by hand.
//
// The on-disk JSON shape is:
//
//	{
//	  "commits": {
//	    "<hash>": {
//	      "analysis_results": {"files_analyzed": 2, "issues": 1},
//	      "commit_info": {"hash": "...", "author_name": "...", ...}
//	    }
//	  }
//	}
//
// Two persisters are provided: FilePersister (the JSON document above)
// and BadgerPersister (one key per entry, ordered by sequence number).
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/datatypes"
)

// AnalysisSummary is what the orchestrator records per commit.
type AnalysisSummary struct {
	FilesAnalyzed int `json:"files_analyzed"`
	Issues        int `json:"issues"`
}

// Entry is one ledger record.
//
// Both halves are kept as raw JSON so that entries written by older
// versions of the tool (with extra keys or differently formatted
// timestamps) survive a load/save cycle unchanged.
type Entry struct {
	AnalysisResults json.RawMessage `json:"analysis_results"`
	CommitInfo      json.RawMessage `json:"commit_info"`
}

// NewEntry builds an Entry from typed values.
func NewEntry(summary AnalysisSummary, commit datatypes.CommitRecord) (Entry, error) {
	results, err := json.Marshal(summary)
	if err != nil {
		return Entry{}, fmt.Errorf("encode analysis results: %w", err)
	}
	info, err := json.Marshal(commit)
	if err != nil {
		return Entry{}, fmt.Errorf("encode commit info: %w", err)
	}
	return Entry{AnalysisResults: results, CommitInfo: info}, nil
}

// Summary decodes the analysis results.
func (e Entry) Summary() (AnalysisSummary, error) {
	var s AnalysisSummary
	if len(e.AnalysisResults) == 0 {
		return s, nil
	}
	err := json.Unmarshal(e.AnalysisResults, &s)
	return s, err
}

// Commit decodes the commit info.
func (e Entry) Commit() (datatypes.CommitRecord, error) {
	var c datatypes.CommitRecord
	if len(e.CommitInfo) == 0 {
		return c, nil
	}
	err := json.Unmarshal(e.CommitInfo, &c)
	return c, err
}

// normalized replaces missing halves with empty objects.
func (e Entry) normalized() Entry {
	if len(e.AnalysisResults) == 0 || bytes.Equal(e.AnalysisResults, []byte("null")) {
		e.AnalysisResults = json.RawMessage("{}")
	}
	if len(e.CommitInfo) == 0 || bytes.Equal(e.CommitInfo, []byte("null")) {
		e.CommitInfo = json.RawMessage("{}")
	}
	return e
}

// =============================================================================
// Ledger
// =============================================================================

// Ledger is an insertion-ordered set of entries keyed by commit hash.
//
// # Thread Safety
//
// Ledger is not safe for concurrent use; Tracker serialises access.
type Ledger struct {
	order   []string
	entries map[string]Entry
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[string]Entry)}
}

// Put inserts or replaces an entry. Replacing keeps the original position.
func (l *Ledger) Put(id string, e Entry) {
	if _, ok := l.entries[id]; !ok {
		l.order = append(l.order, id)
	}
	l.entries[id] = e.normalized()
}

// Get returns the entry for id.
func (l *Ledger) Get(id string) (Entry, bool) {
	e, ok := l.entries[id]
	return e, ok
}

// Has reports whether id is present.
func (l *Ledger) Has(id string) bool {
	_, ok := l.entries[id]
	return ok
}

// IDs returns a copy of the keys in insertion order.
func (l *Ledger) IDs() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Last returns the most recently inserted id.
func (l *Ledger) Last() (string, bool) {
	if len(l.order) == 0 {
		return "", false
	}
	return l.order[len(l.order)-1], true
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.order)
}

// Clone returns a deep copy of the key order and a shallow copy of entries.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{
		order:   l.IDs(),
		entries: make(map[string]Entry, len(l.entries)),
	}
	for k, v := range l.entries {
		c.entries[k] = v
	}
	return c
}

// MarshalJSON writes {"commits": {...}} with keys in insertion order.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"commits":{`)
	for i, id := range l.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(l.entries[id])
		if err != nil {
			return nil, fmt.Errorf("encode entry %s: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

// UnmarshalJSON reads {"commits": {...}} keeping key order.
//
// A document without a "commits" key, or with "commits": null, decodes
// to an empty ledger. Duplicate keys keep the first position and the
// last value, matching Put.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	*l = *New()

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return err
	}
	commits, ok := top["commits"]
	if !ok {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(commits))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New(`"commits" is not an object`)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", keyTok)
		}
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return fmt.Errorf("decode entry %s: %w", id, err)
		}
		l.Put(id, e)
	}

	_, err = dec.Token()
	return err
}
