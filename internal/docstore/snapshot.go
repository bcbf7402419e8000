/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package docstore

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"grundbuch.dev/registry/internal/regerr"
)

// ExportSnapshot walks HEAD's tree and writes every blob into a
// zstd-compressed tar stream, the equivalent of `git archive` without
// shelling out to git. Nothing in this repository restores such an
// archive; followers obtain documents through sync.Engine.PullDocs.
func (s *Store) ExportSnapshot(ctx context.Context) ([]byte, error) {
	head, err := s.repo.Head()
	if err != nil {
		return nil, regerr.NewStorageError(1, "HEAD konnte nicht gelesen werden: %v", err)
	}
	commit, err := s.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, regerr.NewStorageError(1, "HEAD-Commit konnte nicht gelesen werden: %v", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, regerr.NewStorageError(1, "Baum konnte nicht gelesen werden: %v", err)
	}

	var raw bytes.Buffer
	tw := tar.NewWriter(&raw)
	walker := tree.Files()
	defer walker.Close()
	for {
		f, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, regerr.NewStorageError(1, "Baum konnte nicht iteriert werden: %v", err)
		}
		contents, err := f.Contents()
		if err != nil {
			return nil, regerr.NewStorageError(1, "Blob %s konnte nicht gelesen werden: %v", f.Name, err)
		}
		if err := tw.WriteHeader(&tar.Header{
			Name: f.Name,
			Mode: 0o644,
			Size: int64(len(contents)),
		}); err != nil {
			return nil, regerr.NewStorageError(1, "Tar-Header konnte nicht geschrieben werden: %v", err)
		}
		if _, err := tw.Write([]byte(contents)); err != nil {
			return nil, regerr.NewStorageError(1, "Tar-Eintrag konnte nicht geschrieben werden: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, regerr.NewStorageError(1, "Tar-Stream konnte nicht abgeschlossen werden: %v", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, regerr.NewStorageError(1, "zstd-Encoder konnte nicht erstellt werden: %v", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw.Bytes(), nil), nil
}

// HeadCommit returns the id of the document log's current tip.
func (s *Store) HeadCommit() (CommitID, error) {
	head, err := s.repo.Head()
	if err != nil {
		return "", fmt.Errorf("docstore: read HEAD: %w", err)
	}
	return CommitID(head.Hash().String()), nil
}
