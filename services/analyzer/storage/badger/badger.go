// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger opens and wraps the BadgerDB instance that backs the
// tracking ledger when LEDGER_BACKEND=badger.
//
// # Description
//
// The analyzer is a short-lived process: it opens the database, reads the
// ledger, appends a handful of commits, and exits. There is therefore no
// background GC loop; Close runs one value-log GC pass before closing.
//
// # Thread Safety
//
// DB is safe for concurrent use; BadgerDB handles its own locking.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// Config configures a ledger database.
type Config struct {
	// Path is the database directory. Required unless InMemory is true.
	Path string

	// InMemory keeps all data in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit. Default true: a ledger entry that
	// was reported as written must survive a crash.
	SyncWrites bool

	// Logger receives BadgerDB's internal messages. Nil silences them.
	Logger *slog.Logger

	// GCDiscardRatio is passed to RunValueLogGC on Close. Zero skips GC.
	GCDiscardRatio float64
}

// DefaultConfig returns the configuration for an on-disk ledger.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns the configuration used by tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// Infof is demoted to Debug; badger is chatty at Info.
func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// DB wraps badger.DB with transaction helpers.
type DB struct {
	*badger.DB
	path     string
	inMemory bool
	gcRatio  float64
	logger   *slog.Logger
}

// Open opens or creates the database described by cfg.
//
// # Inputs
//
//   - cfg: Database configuration. Path is created with 0750 if missing.
//
// # Outputs
//
//   - *DB: Open database. Caller must Close it.
//   - error: Non-nil if the path is missing or badger fails to open
//     (for example because another process holds the directory lock).
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	return &DB{
		DB:       db,
		path:     cfg.Path,
		inMemory: cfg.InMemory,
		gcRatio:  cfg.GCDiscardRatio,
		logger:   cfg.Logger,
	}, nil
}

// Path returns the database directory ("" when in memory).
func (d *DB) Path() string {
	return d.path
}

// Close runs one value-log GC pass (on-disk databases only) and closes.
func (d *DB) Close() error {
	if !d.inMemory && d.gcRatio > 0 {
		if err := d.DB.RunValueLogGC(d.gcRatio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			if d.logger != nil {
				d.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
	return d.DB.Close()
}

// WithTxn runs fn inside a read-write transaction and commits it.
// The transaction is discarded if fn returns an error.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.DB.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// WithReadTxn runs fn inside a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.DB.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}
