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

// RegisterPublicKey associates an armored OpenPGP public key with a
// user's fingerprint. Idempotent on (benutzer_id, fingerabdruck).
func (s *Store) RegisterPublicKey(ctx context.Context, userID int64, fingerprint, armored string) error {
	_, err := s.write.ExecContext(ctx, `
		INSERT INTO oeffentliche_schluessel (benutzer_id, fingerabdruck, armored) VALUES (?, ?, ?)
		ON CONFLICT (benutzer_id, fingerabdruck) DO UPDATE SET armored = excluded.armored, widerrufen = 0`,
		userID, fingerprint, armored)
	if err != nil {
		return regerr.NewStorageError(1, "Schlüssel konnte nicht gespeichert werden: %v", err)
	}
	return nil
}

// RevokePublicKey marks a fingerprint as no longer usable for signing,
// without deleting its history.
func (s *Store) RevokePublicKey(ctx context.Context, userID int64, fingerprint string) error {
	_, err := s.write.ExecContext(ctx, `
		UPDATE oeffentliche_schluessel SET widerrufen = 1 WHERE benutzer_id = ? AND fingerabdruck = ?`,
		userID, fingerprint)
	if err != nil {
		return regerr.NewStorageError(1, "Schlüssel konnte nicht widerrufen werden: %v", err)
	}
	return nil
}

// PublicKeyArmored implements authsig.KeyLookup: it resolves a
// non-revoked registered key for the account identified by email.
func (s *Store) PublicKeyArmored(ctx context.Context, email, fingerprint string) ([]byte, error) {
	var armored string
	err := s.read.QueryRowContext(ctx, `
		SELECT k.armored FROM oeffentliche_schluessel k
		JOIN benutzer b ON b.id = k.benutzer_id
		WHERE b.email = ? AND k.fingerabdruck = ? AND k.widerrufen = 0`,
		email, fingerprint).Scan(&armored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, regerr.NewAuthError(regerr.AuthNoKey, "kein gültiger Schlüssel für %s / %s", email, fingerprint)
	}
	if err != nil {
		return nil, regerr.NewStorageError(1, "Schlüssel konnte nicht gelesen werden: %v", err)
	}
	return []byte(armored), nil
}
