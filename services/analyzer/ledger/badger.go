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
	"fmt"

	"github.com/dgraph-io/badger/v4"

	ledgerdb "github.com/AleutianAI/CodeAnalyzer/services/analyzer/storage/badger"
)

// entryPrefix namespaces ledger keys. Keys are entryPrefix followed by a
// zero-padded sequence number, so badger's lexical key order is the
// ledger's insertion order.
const entryPrefix = "ledger/entry/"

func entryKey(seq int) []byte {
	return []byte(fmt.Sprintf("%s%020d", entryPrefix, seq))
}

// badgerRecord is the value stored under each entry key.
type badgerRecord struct {
	ID    string `json:"id"`
	Entry Entry  `json:"entry"`
}

// BadgerPersister stores the ledger in BadgerDB.
//
// # Description
//
// Save rewrites every entry key in a single transaction and deletes keys
// beyond the new length, so a reset or a failed save never leaves a
// half-written ledger behind.
//
// # Limitations
//
// The whole ledger must fit in one badger transaction. That is roughly
// tens of thousands of entries with default options.
type BadgerPersister struct {
	db *ledgerdb.DB
}

// NewBadgerPersister wraps an open database. The persister owns db and
// closes it on Close.
func NewBadgerPersister(db *ledgerdb.DB) *BadgerPersister {
	return &BadgerPersister{db: db}
}

// Load reads every entry key in order.
func (p *BadgerPersister) Load(ctx context.Context) (*Ledger, error) {
	l := New()
	err := p.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(entryPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec badgerRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			l.Put(rec.ID, rec.Entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return l, nil
}

// Save replaces the stored ledger with l.
func (p *BadgerPersister) Save(ctx context.Context, l *Ledger) error {
	return p.db.WithTxn(ctx, func(txn *badger.Txn) error {
		ids := l.IDs()
		for seq, id := range ids {
			e, _ := l.Get(id)
			val, err := json.Marshal(badgerRecord{ID: id, Entry: e})
			if err != nil {
				return err
			}
			if err := txn.Set(entryKey(seq), val); err != nil {
				return fmt.Errorf("write entry %s: %w", id, err)
			}
		}

		stale, err := keysFrom(txn, entryKey(len(ids)))
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("delete stale entry: %w", err)
			}
		}
		return nil
	})
}

// keysFrom collects ledger keys >= start.
func keysFrom(txn *badger.Txn, start []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	prefix := []byte(entryPrefix)
	for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}

// Close closes the underlying database.
func (p *BadgerPersister) Close() error {
	return p.db.Close()
}
