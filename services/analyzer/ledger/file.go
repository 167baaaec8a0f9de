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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FilePersister stores the ledger as an indented JSON document.
//
// Writes go to a temporary file in the same directory which is then
// renamed over the target, so a crash mid-write leaves the previous
// ledger intact.
type FilePersister struct {
	path string
}

// NewFilePersister returns a persister for path. The file and its parent
// directory are created on first save.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the ledger file path.
func (p *FilePersister) Path() string {
	return p.path
}

// Load reads the ledger. A missing file yields an empty ledger.
func (p *FilePersister) Load(_ context.Context) (*Ledger, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", p.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return New(), nil
	}

	l := New()
	if err := json.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", p.path, err)
	}
	return l, nil
}

// Save rewrites the ledger file.
func (p *FilePersister) Save(ctx context.Context, l *Ledger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	compact, err := json.Marshal(l)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(out.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// Close is a no-op.
func (p *FilePersister) Close() error {
	return nil
}
