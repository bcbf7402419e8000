/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metastore

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"grundbuch.dev/registry/internal/regerr"
)

// Role is one of the three account roles the registry distinguishes.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleBearbeiter  Role = "bearbeiter" // editor: may propose and sign changesets
	RoleBetrachter  Role = "betrachter" // viewer: read-only
	sessionLifetime      = 30 * time.Minute
)

// User is a row of benutzer.
type User struct {
	ID    int64
	Email string
	Role  Role
}

// CreateUser inserts a new account, hashing password with Argon2id.
// Idempotent on email: a second call with the same email updates the
// password hash and role rather than erroring, matching the
// idempotent-given-the-same-inputs contract change operations need.
func (s *Store) CreateUser(ctx context.Context, email, password string, role Role) (int64, error) {
	if len(password) > MaxPasswordLen {
		return 0, regerr.NewValidationError(1, "Passwort überschreitet die maximale Länge von %d Zeichen", MaxPasswordLen)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return 0, regerr.NewStorageError(1, "Passwort konnte nicht gehasht werden: %v", err)
	}
	var id int64
	err = s.write.QueryRowContext(ctx, `
		INSERT INTO benutzer (email, passwort_hash, rolle) VALUES (?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET passwort_hash = excluded.passwort_hash, rolle = excluded.rolle
		RETURNING id`,
		email, hash, string(role)).Scan(&id)
	if err != nil {
		return 0, regerr.NewStorageError(1, "Benutzer konnte nicht angelegt werden: %v", err)
	}
	return id, nil
}

// DeleteUser removes an account and cascades its sessions, keys and
// subscriptions. Access requests are keyed by email, not by account,
// and are left in place.
func (s *Store) DeleteUser(ctx context.Context, userID int64) error {
	if _, err := s.write.ExecContext(ctx, `DELETE FROM benutzer WHERE id = ?`, userID); err != nil {
		return regerr.NewStorageError(1, "Benutzer konnte nicht gelöscht werden: %v", err)
	}
	return nil
}

// ChangeRole updates a user's role.
func (s *Store) ChangeRole(ctx context.Context, userID int64, role Role) error {
	if _, err := s.write.ExecContext(ctx, `UPDATE benutzer SET rolle = ? WHERE id = ?`, string(role), userID); err != nil {
		return regerr.NewStorageError(1, "Rolle konnte nicht geändert werden: %v", err)
	}
	return nil
}

// UserByEmail looks up an account by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	var role string
	err := s.read.QueryRowContext(ctx, `SELECT id, email, rolle FROM benutzer WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, regerr.NewAuthError(regerr.AuthUnspecified, "unbekannter Benutzer")
	}
	if err != nil {
		return User{}, regerr.NewStorageError(1, "Benutzer konnte nicht gelesen werden: %v", err)
	}
	u.Role = Role(role)
	return u, nil
}

// Login verifies the password and returns a session token, minting a
// fresh one unless a live session already exists for the account.
func (s *Store) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	if len(password) > MaxPasswordLen {
		return "", time.Time{}, regerr.NewValidationError(1, "Passwort überschreitet die maximale Länge von %d Zeichen", MaxPasswordLen)
	}

	var userID int64
	var hash string
	err := s.write.QueryRowContext(ctx, `SELECT id, passwort_hash FROM benutzer WHERE email = ?`, email).
		Scan(&userID, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, regerr.NewAuthError(regerr.AuthUnspecified, "ungültige Anmeldedaten")
	}
	if err != nil {
		return "", time.Time{}, regerr.NewStorageError(1, "Anmeldung fehlgeschlagen: %v", err)
	}
	if !verifyPassword(hash, password) {
		return "", time.Time{}, regerr.NewAuthError(regerr.AuthUnspecified, "ungültige Anmeldedaten")
	}

	now := time.Now().UTC()
	var token, expiryText string
	var expiry time.Time
	err = s.write.QueryRowContext(ctx, `
		SELECT token, gueltig_bis FROM sitzungen WHERE benutzer_id = ? AND gueltig_bis > ?
		ORDER BY gueltig_bis DESC LIMIT 1`, userID, now.Format(time.RFC3339Nano)).
		Scan(&token, &expiryText)
	if err == nil {
		if expiry, err = time.Parse(time.RFC3339Nano, expiryText); err != nil {
			return "", time.Time{}, regerr.NewStorageError(1, "Sitzungsablauf konnte nicht gelesen werden: %v", err)
		}
		return token, expiry, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, regerr.NewStorageError(1, "Sitzung konnte nicht gelesen werden: %v", err)
	}

	token, err = newSessionToken()
	if err != nil {
		return "", time.Time{}, regerr.NewStorageError(1, "Sitzungstoken konnte nicht erzeugt werden: %v", err)
	}
	expiry = now.Add(sessionLifetime)
	if _, err := s.write.ExecContext(ctx, `INSERT INTO sitzungen (token, benutzer_id, gueltig_bis) VALUES (?, ?, ?)`,
		token, userID, expiry.Format(time.RFC3339Nano)); err != nil {
		return "", time.Time{}, regerr.NewStorageError(1, "Sitzung konnte nicht gespeichert werden: %v", err)
	}
	return token, expiry, nil
}

// UserFromToken resolves a live session token to its account.
//
// The original implementation's get_user_from_token executes
// "SELECT id, gueltig_bis FROM sitzungen WHERE token = ?" — a
// two-column result — and then reads row.get::<usize, String>(2),
// a zero-indexed read one past the end of the row. Any expired-token
// lookup there panics at runtime instead of returning a clean error.
// This reimplementation reads the column that was actually selected.
func (s *Store) UserFromToken(ctx context.Context, token string) (User, error) {
	var userID int64
	var expiryStr string
	err := s.write.QueryRowContext(ctx, `SELECT benutzer_id, gueltig_bis FROM sitzungen WHERE token = ?`, token).
		Scan(&userID, &expiryStr)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, regerr.NewAuthError(regerr.AuthBadToken, "unbekanntes Sitzungstoken")
	}
	if err != nil {
		return User{}, regerr.NewStorageError(1, "Sitzung konnte nicht gelesen werden: %v", err)
	}
	expiry, err := time.Parse(time.RFC3339Nano, expiryStr)
	if err != nil {
		return User{}, regerr.NewStorageError(1, "Ablaufzeit der Sitzung ist unlesbar: %v", err)
	}
	if time.Now().UTC().After(expiry) {
		return User{}, regerr.NewAuthError(regerr.AuthExpired, "Sitzung ist abgelaufen")
	}

	var u User
	var role string
	err = s.write.QueryRowContext(ctx, `SELECT id, email, rolle FROM benutzer WHERE id = ?`, userID).
		Scan(&u.ID, &u.Email, &role)
	if err != nil {
		return User{}, regerr.NewStorageError(1, "Benutzer konnte nicht gelesen werden: %v", err)
	}
	u.Role = Role(role)
	return u, nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, 20) // 160 bits, comfortably over the 128-bit floor
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("metastore: read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
