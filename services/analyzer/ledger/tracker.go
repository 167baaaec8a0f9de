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
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/datatypes"
)

// Persister loads and stores a whole ledger.
//
// Load returns an empty ledger and nil when nothing has been stored yet.
// Save replaces whatever was stored before.
type Persister interface {
	Load(ctx context.Context) (*Ledger, error)
	Save(ctx context.Context, l *Ledger) error
	Close() error
}

// Tracker is the tracking store used by the orchestrator.
//
// # Description
//
// Tracker keeps the ledger in memory and rewrites it through its
// Persister after every mutation. A ledger that cannot be loaded is
// treated as empty (the failure is logged); a save that fails is
// reported to the caller but the in-memory state keeps the change, so
// the current run still will not re-analyze the commit.
//
// # Thread Safety
//
// Tracker is safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	ledger    *Ledger
	persister Persister
	logger    *slog.Logger
}

// NewTracker loads the ledger from p.
func NewTracker(ctx context.Context, p Persister, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{persister: p, logger: logger}

	l, err := p.Load(ctx)
	if err != nil || l == nil {
		if err != nil {
			logger.Warn("could not load tracking ledger, starting empty", slog.String("error", err.Error()))
		}
		l = New()
	}
	t.ledger = l
	logger.Debug("tracking ledger loaded", slog.Int("commits", l.Len()))
	return t
}

// IsAnalyzed reports whether the commit has a ledger entry.
func (t *Tracker) IsAnalyzed(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ledger.Has(id)
}

// MarkAnalyzed records the commit and persists the ledger.
//
// # Inputs
//
//   - ctx: Context for the persister.
//   - id: Commit hash.
//   - summary: Files analyzed and files with issues.
//   - commit: Commit details stored as "commit_info".
//
// # Outputs
//
//   - error: Non-nil if persisting failed. The entry is kept in memory
//     either way.
func (t *Tracker) MarkAnalyzed(ctx context.Context, id string, summary AnalysisSummary, commit datatypes.CommitRecord) error {
	entry, err := NewEntry(summary, commit)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.ledger.Put(id, entry)
	if err := t.persister.Save(ctx, t.ledger); err != nil {
		t.logger.Error("could not persist tracking ledger",
			slog.String("commit", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("persist ledger after %s: %w", id, err)
	}
	return nil
}

// AnalyzedIDs returns every recorded commit hash in insertion order.
func (t *Tracker) AnalyzedIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ledger.IDs()
}

// LastAnalyzed returns the most recently recorded commit hash.
func (t *Tracker) LastAnalyzed() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ledger.Last()
}

// Entry returns the recorded entry for id.
func (t *Tracker) Entry(id string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ledger.Get(id)
}

// Len returns the number of recorded commits.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ledger.Len()
}

// Reset empties the ledger and persists the empty state.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ledger = New()
	if err := t.persister.Save(ctx, t.ledger); err != nil {
		return fmt.Errorf("persist empty ledger: %w", err)
	}
	t.logger.Info("tracking ledger reset")
	return nil
}

// Close releases the persister.
func (t *Tracker) Close() error {
	return t.persister.Close()
}
