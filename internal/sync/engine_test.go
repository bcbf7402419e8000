/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package sync

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"grundbuch.dev/registry/internal/peers"
)

func TestPushNotifyHitsEveryPeer(t *testing.T) {
	hits := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := New(t.TempDir(), filepath.Join(t.TempDir(), "meta.sqlite"))
	e.timeout = time.Second

	e.PushNotify(context.Background(), []peers.Peer{{Address: srv.URL}})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case p := <-hits:
			seen[p] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for notify requests, saw %v", seen)
		}
	}
	if !seen["/pull"] || !seen["/pull-db"] {
		t.Fatalf("expected /pull and /pull-db, got %v", seen)
	}
}

func TestPushNotifyToleratesUnreachablePeer(t *testing.T) {
	e := New(t.TempDir(), filepath.Join(t.TempDir(), "meta.sqlite"))
	e.timeout = 200 * time.Millisecond

	// Must not panic or block indefinitely when a peer is unreachable.
	e.PushNotify(context.Background(), []peers.Peer{{Address: "http://127.0.0.1:1"}})
}

func TestPullDBReplacesLocalFileAtomically(t *testing.T) {
	const fakeSnapshot = "fake-zstd-compressed-sqlite-bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get-db" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, fakeSnapshot)
	}))
	defer srv.Close()

	dbPath := filepath.Join(t.TempDir(), "meta.sqlite")
	if err := os.WriteFile(dbPath, []byte("stale-data"), 0o644); err != nil {
		t.Fatalf("seed stale db: %v", err)
	}

	e := New(t.TempDir(), dbPath)
	if err := e.PullDB(context.Background(), srv.URL); err != nil {
		t.Fatalf("PullDB: %v", err)
	}

	got, err := os.ReadFile(dbPath)
	if err != nil {
		t.Fatalf("reading replaced db: %v", err)
	}
	if string(got) != fakeSnapshot {
		t.Fatalf("got %q, want %q", got, fakeSnapshot)
	}
}

func TestPullDocsFetchesFromBareRemote(t *testing.T) {
	bareParent := t.TempDir()
	bareDir := filepath.Join(bareParent, "docs.git")
	if _, err := git.PlainInit(bareDir, true); err != nil {
		t.Fatalf("init bare repo: %v", err)
	}

	// Seed the bare repo by cloning it, committing, and pushing back.
	seedDir := t.TempDir()
	seed, err := git.PlainClone(seedDir, false, &git.CloneOptions{URL: bareDir})
	if err != nil {
		t.Fatalf("clone seed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(seedDir, "doc.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	wt, err := seed.Worktree()
	if err != nil {
		t.Fatalf("seed worktree: %v", err)
	}
	if _, err := wt.Add("doc.json"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := wt.Commit("seed", &git.CommitOptions{Author: &object.Signature{Name: "seed", Email: "seed@example.org", When: time.Now()}}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := seed.Push(&git.PushOptions{}); err != nil {
		t.Fatalf("push: %v", err)
	}

	followerDocsDir := t.TempDir()
	e := New(followerDocsDir, filepath.Join(t.TempDir(), "meta.sqlite"))
	if err := e.PullDocs(context.Background(), "file://"+bareParent); err != nil {
		t.Fatalf("PullDocs: %v", err)
	}

	if _, err := os.Stat(filepath.Join(followerDocsDir, "doc.json")); err != nil {
		t.Fatalf("expected doc.json to be pulled: %v", err)
	}
}
