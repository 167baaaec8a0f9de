// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpen_InMemory(t *testing.T) {
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	assert.Empty(t, db.Path())
}

func TestDB_WithTxn_CommitsAndDiscards(t *testing.T) {
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte("k1"), []byte("v1"))
	}))

	boom := errors.New("boom")
	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set([]byte("k2"), []byte("v2")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("k1"))
		require.NoError(t, err)
		val, err := item.ValueCopy(nil)
		require.NoError(t, err)
		assert.Equal(t, "v1", string(val))

		_, err = txn.Get([]byte("k2"))
		assert.ErrorIs(t, err, badger.ErrKeyNotFound)
		return nil
	}))
}

func TestDB_WithTxn_CancelledContext(t *testing.T) {
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestOpen_OnDiskReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	ctx := context.Background()

	db, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte("commit"), []byte("abc"))
	}))
	require.NoError(t, db.Close())

	db, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, dir, db.Path())

	require.NoError(t, db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("commit"))
		return err
	}))
}
