/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metastore

import (
	"context"

	"github.com/google/uuid"

	"grundbuch.dev/registry/internal/canon"
	"grundbuch.dev/registry/internal/regerr"
)

// AccessStatus is the lifecycle state of an AccessRequest.
type AccessStatus string

const (
	AccessOpen    AccessStatus = "offen"
	AccessGranted AccessStatus = "gewaehrt"
	AccessDenied  AccessStatus = "abgelehnt"
)

// AccessRequest is a row of zugriffsantraege plus its joined
// zugriffsantrag_schluessel rows: a named requester asking to see one
// or more title records outside their default visibility.
type AccessRequest struct {
	ID             string
	RequesterName  string
	RequesterEmail string
	Category       string
	Justification  string
	Keys           []canon.DocKey
	Status         AccessStatus
	CreatedAt      string
	DecidedBy      string
	DecidedAt      string
}

// CreateAccessRequest opens a new request in the "offen" state,
// generating a fresh id rather than accepting one from the caller.
func (s *Store) CreateAccessRequest(ctx context.Context, req AccessRequest) (string, error) {
	if len(req.Keys) == 0 {
		return "", regerr.NewValidationError(1, "ein Zugriffsantrag benötigt mindestens einen Dokumentschlüssel")
	}
	id := uuid.NewString()

	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return "", regerr.NewStorageError(1, "Transaktion konnte nicht gestartet werden: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO zugriffsantraege (id, antragsteller_name, antragsteller_email, kategorie, begruendung)
		VALUES (?, ?, ?, ?, ?)`,
		id, req.RequesterName, req.RequesterEmail, req.Category, req.Justification); err != nil {
		return "", regerr.NewStorageError(1, "Zugriffsantrag konnte nicht gespeichert werden: %v", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO zugriffsantrag_schluessel (zugriffsantrag_id, amtsgericht, bezirk, blatt) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", regerr.NewStorageError(1, "Schlüsselliste konnte nicht vorbereitet werden: %v", err)
	}
	defer stmt.Close()
	for _, key := range req.Keys {
		if _, err := stmt.ExecContext(ctx, id, key.Amtsgericht, key.Bezirk, key.Blatt); err != nil {
			return "", regerr.NewStorageError(1, "Dokumentschlüssel konnte nicht gespeichert werden: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", regerr.NewStorageError(1, "Transaktion konnte nicht abgeschlossen werden: %v", err)
	}
	return id, nil
}

// GrantAccess marks a request granted, recording who decided it.
func (s *Store) GrantAccess(ctx context.Context, requestID, actor string) error {
	return s.setAccessStatus(ctx, requestID, AccessGranted, actor)
}

// DenyAccess marks a request denied, recording who decided it.
func (s *Store) DenyAccess(ctx context.Context, requestID, actor string) error {
	return s.setAccessStatus(ctx, requestID, AccessDenied, actor)
}

func (s *Store) setAccessStatus(ctx context.Context, requestID string, status AccessStatus, actor string) error {
	if _, err := s.write.ExecContext(ctx, `
		UPDATE zugriffsantraege
		SET status = ?, entschieden_von = ?, entschieden_am = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?`, string(status), actor, requestID); err != nil {
		return regerr.NewStorageError(1, "Zugriffsantrag konnte nicht aktualisiert werden: %v", err)
	}
	return nil
}

// AccessRequestsForUser lists every request a given email address has
// filed, most recent first.
func (s *Store) AccessRequestsForUser(ctx context.Context, email string) ([]AccessRequest, error) {
	rows, err := s.read.QueryContext(ctx, `
		SELECT id, antragsteller_name, antragsteller_email, kategorie, begruendung, status,
		       erstellt_am, entschieden_von, COALESCE(entschieden_am, '')
		FROM zugriffsantraege WHERE antragsteller_email = ? ORDER BY erstellt_am DESC`, email)
	if err != nil {
		return nil, regerr.NewStorageError(1, "Zugriffsanträge konnten nicht gelesen werden: %v", err)
	}
	defer rows.Close()

	var out []AccessRequest
	for rows.Next() {
		var req AccessRequest
		var status string
		if err := rows.Scan(&req.ID, &req.RequesterName, &req.RequesterEmail, &req.Category, &req.Justification,
			&status, &req.CreatedAt, &req.DecidedBy, &req.DecidedAt); err != nil {
			return nil, regerr.NewStorageError(1, "Zugriffsantragzeile konnte nicht gelesen werden: %v", err)
		}
		req.Status = AccessStatus(status)
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, regerr.NewStorageError(1, "Zugriffsanträge konnten nicht iteriert werden: %v", err)
	}

	for i := range out {
		keys, err := s.accessRequestKeys(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Keys = keys
	}
	return out, nil
}

func (s *Store) accessRequestKeys(ctx context.Context, requestID string) ([]canon.DocKey, error) {
	rows, err := s.read.QueryContext(ctx, `
		SELECT amtsgericht, bezirk, blatt FROM zugriffsantrag_schluessel WHERE zugriffsantrag_id = ?`, requestID)
	if err != nil {
		return nil, regerr.NewStorageError(1, "Dokumentschlüssel konnten nicht gelesen werden: %v", err)
	}
	defer rows.Close()

	var keys []canon.DocKey
	for rows.Next() {
		var key canon.DocKey
		if err := rows.Scan(&key.Amtsgericht, &key.Bezirk, &key.Blatt); err != nil {
			return nil, regerr.NewStorageError(1, "Dokumentschlüsselzeile konnte nicht gelesen werden: %v", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, regerr.NewStorageError(1, "Dokumentschlüssel konnten nicht iteriert werden: %v", err)
	}
	return keys, nil
}
