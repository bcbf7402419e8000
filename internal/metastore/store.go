/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metastore is the relational side of the registry: user
// accounts, sessions, registered public keys, district metadata,
// subscriptions and access requests. It never stores document bodies —
// those live in internal/docstore, content-addressed in a commit log.
//
// A Store owns exactly one writer connection (SQLite has no use for a
// write connection pool; concurrent writers just serialize on the
// database lock, so we do it explicitly and cheaply in Go instead) and
// a separate pool of read-only connections, mirroring the single-writer
// discipline the original implementation got from a single in-process
// connection.
package metastore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is safe for concurrent use.
type Store struct {
	write *sql.DB // exactly one open connection
	read  *sql.DB // pooled, read-only
	path  string
}

// Open creates the database file at path if absent, applies the schema,
// and returns a ready Store. The caller must call Close.
func Open(ctx context.Context, path string) (*Store, error) {
	write, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("metastore: open writer: %w", err)
	}
	write.SetMaxOpenConns(1)
	write.SetMaxIdleConns(1)

	read, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("metastore: open reader pool: %w", err)
	}

	s := &Store{write: write, read: read, path: path}
	if err := s.migrate(ctx); err != nil {
		write.Close()
		read.Close()
		return nil, err
	}
	return s, nil
}

// Close releases both connections.
func (s *Store) Close() error {
	err1 := s.write.Close()
	err2 := s.read.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Path returns the underlying SQLite file path.
func (s *Store) Path() string { return s.path }

const schema = `
CREATE TABLE IF NOT EXISTS benutzer (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	passwort_hash TEXT NOT NULL,
	rolle TEXT NOT NULL CHECK (rolle IN ('admin', 'bearbeiter', 'betrachter')),
	erstellt_am TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE TABLE IF NOT EXISTS sitzungen (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	token TEXT NOT NULL UNIQUE,
	benutzer_id INTEGER NOT NULL REFERENCES benutzer(id) ON DELETE CASCADE,
	gueltig_bis TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sitzungen_token ON sitzungen(token);

CREATE TABLE IF NOT EXISTS oeffentliche_schluessel (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	benutzer_id INTEGER NOT NULL REFERENCES benutzer(id) ON DELETE CASCADE,
	fingerabdruck TEXT NOT NULL,
	armored TEXT NOT NULL,
	widerrufen INTEGER NOT NULL DEFAULT 0,
	UNIQUE (benutzer_id, fingerabdruck)
);

CREATE TABLE IF NOT EXISTS bezirke (
	amtsgericht TEXT NOT NULL,
	bezirk TEXT NOT NULL,
	anzeigename TEXT NOT NULL,
	PRIMARY KEY (amtsgericht, bezirk)
);

CREATE TABLE IF NOT EXISTS abonnements (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	benutzer_id INTEGER NOT NULL REFERENCES benutzer(id) ON DELETE CASCADE,
	amtsgericht TEXT NOT NULL,
	bezirk TEXT NOT NULL,
	blatt INTEGER NOT NULL,
	kanal TEXT NOT NULL CHECK (kanal IN ('webhook', 'email')),
	ziel TEXT NOT NULL,
	aktenzeichen TEXT NOT NULL DEFAULT '',
	UNIQUE (benutzer_id, amtsgericht, bezirk, blatt, kanal, ziel)
);
CREATE INDEX IF NOT EXISTS idx_abonnements_blatt ON abonnements(amtsgericht, bezirk, blatt);

-- id is a uuid.NewString() value, not an autoincrement integer, so a
-- request id is stable across the junction rows in
-- zugriffsantrag_schluessel below and safe to hand out before the
-- surrounding commit settles.
CREATE TABLE IF NOT EXISTS zugriffsantraege (
	id TEXT PRIMARY KEY,
	antragsteller_name TEXT NOT NULL,
	antragsteller_email TEXT NOT NULL,
	kategorie TEXT NOT NULL,
	begruendung TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('offen', 'gewaehrt', 'abgelehnt')) DEFAULT 'offen',
	erstellt_am TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	entschieden_von TEXT NOT NULL DEFAULT '',
	entschieden_am TEXT
);

-- One row per requested document key; an AccessRequest names a list
-- of keys, not a single one.
CREATE TABLE IF NOT EXISTS zugriffsantrag_schluessel (
	zugriffsantrag_id TEXT NOT NULL REFERENCES zugriffsantraege(id) ON DELETE CASCADE,
	amtsgericht TEXT NOT NULL,
	bezirk TEXT NOT NULL,
	blatt INTEGER NOT NULL,
	PRIMARY KEY (zugriffsantrag_id, amtsgericht, bezirk, blatt)
);

-- At-most-once notification delivery per (commit, subscription) pair,
-- independent of whether the
-- notifier's own attempt succeeded or failed transiently.
CREATE TABLE IF NOT EXISTS benachrichtigt (
	commit_id TEXT NOT NULL,
	abonnement_id INTEGER NOT NULL REFERENCES abonnements(id) ON DELETE CASCADE,
	versucht_am TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	PRIMARY KEY (commit_id, abonnement_id)
);
`

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.write.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("metastore: apply schema: %w", err)
	}
	return nil
}
