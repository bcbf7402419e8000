/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package docstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"grundbuch.dev/registry/internal/canon"
	"grundbuch.dev/registry/internal/regerr"
)

const signatureBlockHeader = "-----BEGIN SIGNATURE-----"
const signatureBlockFooter = "-----END SIGNATURE-----"

// ApplyChangeset writes every new/changed document in cs, commits them
// in one git commit whose message carries the structured record
// (title, description, Hash:, Key-ID:, and the armored detached
// signature bytes), and returns the new commit's id. If the resulting
// tree is identical to HEAD's, the commit is skipped and the current
// HEAD id is returned unchanged — changesets are idempotent given the
// same inputs.
func (s *Store) ApplyChangeset(ctx context.Context, author Author, resolver LandResolver, cs canon.Changeset) (CommitID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wt, err := s.repo.Worktree()
	if err != nil {
		return "", regerr.NewStorageError(1, "Worktree konnte nicht geöffnet werden: %v", err)
	}

	docs := make([]canon.Document, 0, len(cs.Payload.New)+len(cs.Payload.Changed))
	docs = append(docs, cs.Payload.New...)
	for _, p := range cs.Payload.Changed {
		docs = append(docs, p.New)
	}

	for _, doc := range docs {
		land, err := resolver.ResolveLand(ctx, doc.Key.Amtsgericht, doc.Key.Bezirk)
		if err != nil {
			return "", err
		}
		rel, err := docPath(land, doc.Key)
		if err != nil {
			return "", err
		}
		full := filepath.Join(s.dir, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return "", regerr.NewStorageError(1, "Verzeichnis konnte nicht angelegt werden: %v", err)
		}
		encoded, err := canon.Marshal(doc)
		if err != nil {
			return "", regerr.NewValidationError(1, "Dokument konnte nicht kanonisiert werden: %v", err)
		}
		if err := os.WriteFile(full, encoded, 0o644); err != nil {
			return "", regerr.NewStorageError(1, "Dokument konnte nicht geschrieben werden: %v", err)
		}
		if _, err := wt.Add(filepath.ToSlash(rel)); err != nil {
			return "", regerr.NewStorageError(1, "Dokument konnte nicht vorgemerkt werden: %v", err)
		}
	}

	head, err := s.repo.Head()
	if err != nil {
		return "", regerr.NewStorageError(1, "HEAD konnte nicht gelesen werden: %v", err)
	}
	headCommit, err := s.repo.CommitObject(head.Hash())
	if err != nil {
		return "", regerr.NewStorageError(1, "HEAD-Commit konnte nicht gelesen werden: %v", err)
	}
	status, err := wt.Status()
	if err != nil {
		return "", regerr.NewStorageError(1, "Status konnte nicht ermittelt werden: %v", err)
	}
	if status.IsClean() {
		return CommitID(headCommit.Hash.String()), nil
	}

	msg := commitMessage(cs)
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", regerr.NewStorageError(1, "Commit fehlgeschlagen: %v", err)
	}
	return CommitID(hash.String()), nil
}

// commitMessage builds the durability record for the changeset's
// signature: a human title/description followed by the machine-read
// block that lets a follower or auditor reconstruct exactly what was
// signed and verify it again later.
func commitMessage(cs canon.Changeset) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n\n", cs.Title)
	if cs.Description != "" {
		fmt.Fprintf(&buf, "%s\n\n", cs.Description)
	}
	fmt.Fprintf(&buf, "Hash: %s\n", cs.HashTag)
	fmt.Fprintf(&buf, "Key-ID: %s\n\n", cs.SignerFingerprint)
	buf.WriteString(signatureBlockHeader + "\n")
	buf.WriteString(armorSignature(cs.Signature))
	buf.WriteString("\n" + signatureBlockFooter + "\n")
	return buf.String()
}
