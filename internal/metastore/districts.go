/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metastore

import (
	"context"
	"database/sql"
	"errors"

	"grundbuch.dev/registry/internal/regerr"
)

// District is a row of bezirke: the jurisdictions a land registry
// entry's key can name.
type District struct {
	Amtsgericht string
	Bezirk      string
	Anzeigename string
}

// CreateDistrict inserts or updates a single district.
func (s *Store) CreateDistrict(ctx context.Context, d District) error {
	_, err := s.write.ExecContext(ctx, `
		INSERT INTO bezirke (amtsgericht, bezirk, anzeigename) VALUES (?, ?, ?)
		ON CONFLICT (amtsgericht, bezirk) DO UPDATE SET anzeigename = excluded.anzeigename`,
		d.Amtsgericht, d.Bezirk, d.Anzeigename)
	if err != nil {
		return regerr.NewStorageError(1, "Bezirk konnte nicht gespeichert werden: %v", err)
	}
	return nil
}

// CreateDistricts applies a batch in one transaction, for bulk imports.
func (s *Store) CreateDistricts(ctx context.Context, ds []District) error {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return regerr.NewStorageError(1, "Transaktion konnte nicht gestartet werden: %v", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bezirke (amtsgericht, bezirk, anzeigename) VALUES (?, ?, ?)
		ON CONFLICT (amtsgericht, bezirk) DO UPDATE SET anzeigename = excluded.anzeigename`)
	if err != nil {
		return regerr.NewStorageError(1, "Batch-Anweisung konnte nicht vorbereitet werden: %v", err)
	}
	defer stmt.Close()

	for _, d := range ds {
		if _, err := stmt.ExecContext(ctx, d.Amtsgericht, d.Bezirk, d.Anzeigename); err != nil {
			return regerr.NewStorageError(1, "Bezirk %s/%s konnte nicht gespeichert werden: %v", d.Amtsgericht, d.Bezirk, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return regerr.NewStorageError(1, "Transaktion konnte nicht abgeschlossen werden: %v", err)
	}
	return nil
}

// DeleteDistricts removes the named (amtsgericht, bezirk) pairs.
func (s *Store) DeleteDistricts(ctx context.Context, ds []District) error {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return regerr.NewStorageError(1, "Transaktion konnte nicht gestartet werden: %v", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM bezirke WHERE amtsgericht = ? AND bezirk = ?`)
	if err != nil {
		return regerr.NewStorageError(1, "Batch-Anweisung konnte nicht vorbereitet werden: %v", err)
	}
	defer stmt.Close()

	for _, d := range ds {
		if _, err := stmt.ExecContext(ctx, d.Amtsgericht, d.Bezirk); err != nil {
			return regerr.NewStorageError(1, "Bezirk %s/%s konnte nicht gelöscht werden: %v", d.Amtsgericht, d.Bezirk, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return regerr.NewStorageError(1, "Transaktion konnte nicht abgeschlossen werden: %v", err)
	}
	return nil
}

// ResolveLand looks up a district's display name, honoring the
// wildcard amtsgericht "*" which matches on bezirk alone.
func (s *Store) ResolveLand(ctx context.Context, amtsgericht, bezirk string) (string, error) {
	var name string
	err := s.read.QueryRowContext(ctx,
		`SELECT anzeigename FROM bezirke WHERE amtsgericht = ? AND bezirk = ?`, amtsgericht, bezirk).
		Scan(&name)
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", regerr.NewStorageError(1, "Bezirk konnte nicht gelesen werden: %v", err)
	}

	err = s.read.QueryRowContext(ctx,
		`SELECT anzeigename FROM bezirke WHERE amtsgericht = '*' AND bezirk = ?`, bezirk).
		Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", regerr.NewValidationError(1, "Ungültiges Amtsgericht oder ungültige Gemarkung: %s/%s", amtsgericht, bezirk)
	}
	if err != nil {
		return "", regerr.NewStorageError(1, "Bezirk konnte nicht gelesen werden: %v", err)
	}
	return name, nil
}
