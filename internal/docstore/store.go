/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package docstore is the content-addressed, append-only log of title
// documents: every change is one git commit, the commit message carries
// the detached signature that authorized it, and a document's current
// state is whatever its path holds at HEAD. There is exactly one
// writer; Store serializes ApplyChangeset internally and expects the
// caller (internal/replica) to have already rejected the request if
// this node is not currently the writer.
package docstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"grundbuch.dev/registry/internal/canon"
	"grundbuch.dev/registry/internal/regerr"
)

// CommitID identifies a changeset durably recorded in the log.
type CommitID string

// LandResolver maps a document key's (amtsgericht, bezirk) to its
// display land name, used to build the on-disk path. Implemented by
// internal/metastore's Store; kept narrow so docstore has no storage
// dependency beyond go-git.
type LandResolver interface {
	ResolveLand(ctx context.Context, amtsgericht, bezirk string) (string, error)
}

// Author identifies who authored a commit.
type Author struct {
	Name  string
	Email string
}

// Store is the git-backed document log. Safe for concurrent use; all
// mutating operations serialize on mu.
type Store struct {
	dir  string
	repo *git.Repository

	mu sync.Mutex
}

// Open opens an existing repository at dir or initializes a fresh one
// with an empty root commit, mirroring the lazy-init pattern of a
// single local working tree rather than a lease pool — DocStore has
// exactly one writer, so there is nothing to pool.
func Open(ctx context.Context, dir string) (*Store, error) {
	repo, err := git.PlainOpen(dir)
	if err == nil {
		return &Store{dir: dir, repo: repo}, nil
	}
	if err != git.ErrRepositoryNotExists {
		return nil, regerr.NewStorageError(1, "Repository konnte nicht geöffnet werden: %v", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, regerr.NewStorageError(1, "Verzeichnis konnte nicht angelegt werden: %v", err)
	}
	repo, err = git.PlainInit(dir, false)
	if err != nil {
		return nil, regerr.NewStorageError(1, "Repository konnte nicht initialisiert werden: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, regerr.NewStorageError(1, "Worktree konnte nicht geöffnet werden: %v", err)
	}
	_, err = wt.Commit("Initial commit", &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  "Grundbuchregister",
			Email: "registry@grundbuch.invalid",
			When:  time.Now(),
		},
	})
	if err != nil {
		return nil, regerr.NewStorageError(1, "Initial-Commit konnte nicht erstellt werden: %v", err)
	}

	return &Store{dir: dir, repo: repo}, nil
}

// docPath builds <Land>/<Amtsgericht>/<Bezirk>/<Bezirk>_<Blatt>.json,
// case-preserved exactly as given, rejecting traversal attempts that
// the canon.DocKey.Valid check alone would not catch if called from
// untrusted input without going through canon first.
func docPath(land string, key canon.DocKey) (string, error) {
	if !key.Valid() {
		return "", regerr.NewValidationError(1, "ungültiger Dokumentschlüssel: %s", key.String())
	}
	if strings.ContainsAny(land, `/\`) || strings.Contains(land, "..") {
		return "", regerr.NewValidationError(1, "ungültiger Landname: %s", land)
	}
	rel := filepath.Join(land, key.Amtsgericht, key.Bezirk, fmt.Sprintf("%s_%d.json", key.Bezirk, key.Blatt))
	if strings.Contains(rel, "..") {
		return "", regerr.NewValidationError(1, "Pfadtraversierung abgelehnt: %s", rel)
	}
	return rel, nil
}

// ReadDoc reads the current (HEAD) state of a document.
func (s *Store) ReadDoc(ctx context.Context, land string, key canon.DocKey) (canon.Document, error) {
	rel, err := docPath(land, key)
	if err != nil {
		return canon.Document{}, err
	}
	full := filepath.Join(s.dir, rel)
	raw, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return canon.Document{}, regerr.NewValidationError(1, "Dokument nicht gefunden: %s", key.String())
	}
	if err != nil {
		return canon.Document{}, regerr.NewStorageError(1, "Dokument konnte nicht gelesen werden: %v", err)
	}

	var doc canon.Document
	if err := canon.Unmarshal(raw, &doc); err != nil {
		return canon.Document{}, regerr.NewStorageError(1, "Dokument konnte nicht dekodiert werden: %v", err)
	}
	return doc, nil
}
