/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metastore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"grundbuch.dev/registry/internal/regerr"
)

// Snapshot produces a zstd-compressed copy of the database, consistent
// as of the moment VACUUM INTO runs, suitable for shipping to a
// follower.
func (s *Store) Snapshot(ctx context.Context) ([]byte, error) {
	tmp, err := os.CreateTemp("", "metastore-snapshot-*.sqlite")
	if err != nil {
		return nil, regerr.NewStorageError(1, "temporäre Snapshot-Datei konnte nicht erstellt werden: %v", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	os.Remove(tmpPath) // VACUUM INTO requires the target not to exist
	defer os.Remove(tmpPath)

	if _, err := s.write.ExecContext(ctx, `VACUUM INTO ?`, tmpPath); err != nil {
		return nil, regerr.NewStorageError(1, "VACUUM INTO fehlgeschlagen: %v", err)
	}

	raw, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, regerr.NewStorageError(1, "Snapshot konnte nicht gelesen werden: %v", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, regerr.NewStorageError(1, "zstd-Encoder konnte nicht erstellt werden: %v", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

// Restore overwrites the live database with a snapshot produced by
// Snapshot, atomically: it decompresses to a temp file in the same
// directory as the live database, then os.Rename over it, so a crash
// mid-restore never leaves a half-written database file.
func (s *Store) Restore(ctx context.Context, snapshot []byte) error {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return regerr.NewStorageError(1, "zstd-Decoder konnte nicht erstellt werden: %v", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(snapshot, nil)
	if err != nil {
		return regerr.NewStorageError(1, "Snapshot konnte nicht entpackt werden: %v", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "metastore-restore-*.sqlite")
	if err != nil {
		return regerr.NewStorageError(1, "temporäre Restore-Datei konnte nicht erstellt werden: %v", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return regerr.NewStorageError(1, "Restore-Datei konnte nicht geschrieben werden: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return regerr.NewStorageError(1, "Restore-Datei konnte nicht geschlossen werden: %v", err)
	}

	if err := s.write.Close(); err != nil {
		os.Remove(tmpPath)
		return regerr.NewStorageError(1, "Schreibverbindung konnte nicht geschlossen werden: %v", err)
	}
	if err := s.read.Close(); err != nil {
		os.Remove(tmpPath)
		return regerr.NewStorageError(1, "Leseverbindung konnte nicht geschlossen werden: %v", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return regerr.NewStorageError(1, "Restore konnte nicht atomar angewendet werden: %v", err)
	}

	restored, err := Open(ctx, s.path)
	if err != nil {
		return regerr.NewStorageError(1, "wiederhergestellte Datenbank konnte nicht geöffnet werden: %v", err)
	}
	*s = *restored
	return nil
}
