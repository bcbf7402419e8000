/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package sync fans commits out to followers and pulls them back in:
// PushNotify tells peers a new commit exists (fire-and-log, never
// blocks or fails the write that triggered it), PullDocs and PullDB
// bring a follower's local copies up to date with the writer.
package sync

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"golang.org/x/sync/errgroup"

	"grundbuch.dev/registry/internal/peers"
	"grundbuch.dev/registry/internal/regerr"
)

const defaultTimeout = 10 * time.Second

// Engine fans out push notifications and performs pulls against a
// writer.
type Engine struct {
	client     *http.Client
	docsDir    string
	metaDBPath string
	timeout    time.Duration
}

// New builds an Engine. docsDir and metaDBPath are the local paths
// PullDocs/PullDB operate on.
func New(docsDir, metaDBPath string) *Engine {
	return &Engine{
		client:     http.DefaultClient,
		docsDir:    docsDir,
		metaDBPath: metaDBPath,
		timeout:    defaultTimeout,
	}
}

// PushNotify fires POST /pull and POST /pull-db at every peer,
// concurrently, with a short per-peer timeout. A peer that is
// unreachable or errors only gets a warning log line — this is
// best-effort wakeup, not a commit guarantee. A follower that misses
// it catches up only on its next PullAll, which runs at follower
// startup and after a commit it forwards to the writer.
func (e *Engine) PushNotify(ctx context.Context, list []peers.Peer) {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range list {
		p := p
		g.Go(func() error {
			e.notifyOne(gctx, p, "/pull")
			e.notifyOne(gctx, p, "/pull-db")
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) notifyOne(ctx context.Context, p peers.Peer, path string) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Address+path, nil)
	if err != nil {
		clog.FromContext(ctx).Warnf("sync: building notify request to %s%s: %v", p.Address, path, err)
		return
	}
	resp, err := e.client.Do(req)
	if err != nil {
		clog.FromContext(ctx).Warnf("sync: notifying %s%s: %v", p.Address, path, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		clog.FromContext(ctx).Warnf("sync: %s%s returned status %d", p.Address, path, resp.StatusCode)
	}
}

// PullAll runs PullDocs and PullDB against writerAddr in sequence:
// documents first so a subsequent PullDB's subscription/access-request
// rows never reference a document that has not landed yet.
func (e *Engine) PullAll(ctx context.Context, writerAddr string) error {
	if err := e.PullDocs(ctx, writerAddr); err != nil {
		return err
	}
	return e.PullDB(ctx, writerAddr)
}

// PullDocs fetches and fast-forwards the local document log from the
// writer's git remote. Initializes the local repository if it does not
// exist yet. A no-op if already at the writer's head.
func (e *Engine) PullDocs(ctx context.Context, writerAddr string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	repo, err := git.PlainOpen(e.docsDir)
	if err == git.ErrRepositoryNotExists {
		if mkErr := os.MkdirAll(e.docsDir, 0o755); mkErr != nil {
			return regerr.NewStorageError(1, "Verzeichnis konnte nicht angelegt werden: %v", mkErr)
		}
		repo, err = git.PlainInit(e.docsDir, false)
	}
	if err != nil {
		return regerr.NewStorageError(1, "Repository konnte nicht geöffnet werden: %v", err)
	}

	remoteURL := writerAddr + "/docs.git"
	if _, err := repo.CreateRemote(&config.RemoteConfig{Name: "writer", URLs: []string{remoteURL}}); err != nil && err != git.ErrRemoteExists {
		return regerr.NewStorageError(1, "Remote konnte nicht angelegt werden: %v", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return regerr.NewStorageError(1, "Worktree konnte nicht geöffnet werden: %v", err)
	}

	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: "writer", Force: true})
	if err == git.NoErrAlreadyUpToDate {
		return nil
	}
	if err != nil {
		return regerr.NewClusterError(1, "Pull vom Schreibknoten fehlgeschlagen: %v", err)
	}
	return nil
}

// PullDB fetches a MetaStore snapshot from the writer and atomically
// replaces the local copy. A context cancellation before the rename
// removes the downloaded temp file and leaves the live database
// untouched.
func (e *Engine) PullDB(ctx context.Context, writerAddr string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, writerAddr+"/get-db", nil)
	if err != nil {
		return regerr.NewClusterError(1, "Anfrage an Schreibknoten konnte nicht erstellt werden: %v", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return regerr.NewClusterError(1, "Datenbank-Snapshot konnte nicht abgerufen werden: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return regerr.NewClusterError(1, "Schreibknoten antwortete mit Status %d", resp.StatusCode)
	}

	dir := filepath.Dir(e.metaDBPath)
	tmp, err := os.CreateTemp(dir, "metastore-pull-*.sqlite")
	if err != nil {
		return regerr.NewStorageError(1, "temporäre Datei konnte nicht angelegt werden: %v", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return regerr.NewStorageError(1, "Snapshot konnte nicht geschrieben werden: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return regerr.NewStorageError(1, "Snapshot-Datei konnte nicht geschlossen werden: %v", err)
	}

	if err := ctx.Err(); err != nil {
		os.Remove(tmpPath)
		return regerr.NewClusterError(1, "Kontext vor dem Umbenennen abgebrochen: %v", err)
	}

	if err := os.Rename(tmpPath, e.metaDBPath); err != nil {
		return regerr.NewStorageError(1, "Snapshot konnte nicht atomar übernommen werden: %v", err)
	}
	return nil
}
