/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package docstore

import (
	"context"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"grundbuch.dev/registry/internal/canon"
	"grundbuch.dev/registry/internal/regerr"
)

// History returns the commits that touched key's document path, most
// recent first.
func (s *Store) History(ctx context.Context, land string, key canon.DocKey) ([]CommitID, error) {
	rel, err := docPath(land, key)
	if err != nil {
		return nil, err
	}

	head, err := s.repo.Head()
	if err != nil {
		return nil, regerr.NewStorageError(1, "HEAD konnte nicht gelesen werden: %v", err)
	}
	iter, err := s.repo.Log(&git.LogOptions{From: head.Hash(), FileName: &rel})
	if err != nil {
		return nil, regerr.NewStorageError(1, "Historie konnte nicht gelesen werden: %v", err)
	}
	defer iter.Close()

	var out []CommitID
	err = iter.ForEach(func(c *object.Commit) error {
		out = append(out, CommitID(c.Hash.String()))
		return nil
	})
	if err != nil {
		return nil, regerr.NewStorageError(1, "Historie konnte nicht iteriert werden: %v", err)
	}
	return out, nil
}

// CommitSignature is the record recovered from a commit message built
// by commitMessage: the fields the original signer authorized, plus
// the original detached signature bytes.
type CommitSignature struct {
	Title, Description string
	HashTag, KeyID      string
	Signature           []byte
}

// ReadCommitSignature parses the structured block back out of a
// commit's message, the inverse of commitMessage. Nothing else in this
// repository calls it.
func ReadCommitSignature(ctx context.Context, repo *git.Repository, id CommitID) (CommitSignature, error) {
	c, err := repo.CommitObject(plumbing.NewHash(string(id)))
	if err != nil {
		return CommitSignature{}, regerr.NewStorageError(1, "Commit konnte nicht gelesen werden: %v", err)
	}
	return parseCommitMessage(c.Message)
}

func parseCommitMessage(msg string) (CommitSignature, error) {
	begin := strings.Index(msg, signatureBlockHeader)
	end := strings.Index(msg, signatureBlockFooter)
	if begin < 0 || end < 0 || end < begin {
		return CommitSignature{}, regerr.NewValidationError(1, "Commit-Nachricht enthält keinen Signaturblock")
	}

	head := strings.TrimSpace(msg[:begin])
	block := msg[begin+len(signatureBlockHeader) : end]

	sig, err := unarmorSignature(block)
	if err != nil {
		return CommitSignature{}, regerr.NewValidationError(1, "Signaturblock konnte nicht dekodiert werden: %v", err)
	}

	var hashTag, keyID string
	var titleLines []string
	for _, line := range strings.Split(head, "\n") {
		switch {
		case strings.HasPrefix(line, "Hash: "):
			hashTag = strings.TrimPrefix(line, "Hash: ")
		case strings.HasPrefix(line, "Key-ID: "):
			keyID = strings.TrimPrefix(line, "Key-ID: ")
		default:
			titleLines = append(titleLines, line)
		}
	}

	title := strings.TrimSpace(strings.Join(titleLines, "\n"))
	var description string
	if i := strings.Index(title, "\n\n"); i >= 0 {
		description = strings.TrimSpace(title[i+2:])
		title = title[:i]
	}
	return CommitSignature{Title: title, Description: description, HashTag: hashTag, KeyID: keyID, Signature: sig}, nil
}
