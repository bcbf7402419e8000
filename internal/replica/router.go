/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package replica implements the three-way state machine every commit
// request passes through: apply it locally (standalone or writer), or
// forward it to whoever is currently the writer and then catch up
// (follower). Exactly one of these three behaviors runs per node, set
// once at startup from Mode.
package replica

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"

	"grundbuch.dev/registry/internal/canon"
	"grundbuch.dev/registry/internal/peers"
	"grundbuch.dev/registry/internal/regerr"
)

// Mode is this node's role in the cluster, set from GRUNDBUCH_ROLE.
type Mode string

const (
	ModeStandalone Mode = "standalone"
	ModeWriter     Mode = "writer"
	ModeFollower   Mode = "follower"
)

// CommitRequest is an authenticated request to apply a changeset; its
// signature is verified by the Applier on the node that applies it.
type CommitRequest struct {
	BearerToken string
	Changeset   canon.Changeset
}

// CommitID identifies an applied changeset.
type CommitID string

// Applier commits a changeset locally. Implemented by a small adapter
// over internal/docstore and internal/metastore in cmd/registryd; kept
// here as an interface so Router has no storage-layer dependency.
type Applier interface {
	Apply(ctx context.Context, cs canon.Changeset) (CommitID, error)
}

// Syncer is the subset of internal/sync.Engine the router drives.
type Syncer interface {
	PushNotify(ctx context.Context, list []peers.Peer)
	PullAll(ctx context.Context, writerAddr string) error
}

// Router dispatches a commit request per Mode.
type Router struct {
	Mode      Mode
	Applier   Applier
	Discovery peers.Discovery
	Sync      Syncer
	Client    *http.Client

	// writeMu serializes ApplyChangeset on a writer node, the
	// component-level half of the single-writer guarantee; the other
	// half is this Router itself refusing the request on a follower.
	writeMu sync.Mutex
}

// Commit implements the state machine: standalone and writer both
// apply in-process (the writer additionally best-effort notifies
// peers afterward); follower forwards upstream and then pulls to
// guarantee read-your-writes before returning.
func (r *Router) Commit(ctx context.Context, req CommitRequest) (CommitID, error) {
	switch r.Mode {
	case ModeStandalone:
		return r.Applier.Apply(ctx, req.Changeset)

	case ModeWriter:
		r.writeMu.Lock()
		defer r.writeMu.Unlock()

		id, err := r.Applier.Apply(ctx, req.Changeset)
		if err != nil {
			return "", err
		}
		if r.Sync != nil && r.Discovery != nil {
			list, derr := r.Discovery.ListPeers(ctx)
			if derr != nil {
				clog.FromContext(ctx).Warnf("replica: listing peers for push-notify: %v", derr)
			} else {
				r.Sync.PushNotify(ctx, list)
			}
		}
		return id, nil

	case ModeFollower:
		return r.forward(ctx, req)

	default:
		return "", regerr.NewClusterError(1, "unbekannter Knotenmodus: %s", r.Mode)
	}
}

func (r *Router) forward(ctx context.Context, req CommitRequest) (CommitID, error) {
	writerAddr, err := r.Discovery.WriterAddress(ctx)
	if err != nil {
		return "", err
	}

	canonical, err := canon.Marshal(req.Changeset)
	if err != nil {
		return "", regerr.NewValidationError(1, "Changeset konnte nicht kanonisiert werden: %v", err)
	}

	fctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(fctx, http.MethodPost, writerAddr+"/commit", bytes.NewReader(canonical))
	if err != nil {
		return "", regerr.NewClusterError(1, "Weiterleitung konnte nicht vorbereitet werden: %v", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.BearerToken)
	httpReq.Header.Set("Content-Type", "application/json")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", regerr.NewClusterError(1, "Schreibknoten nicht erreichbar: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", regerr.NewClusterError(1, "Schreibknoten antwortete mit Status %d: %s", resp.StatusCode, string(body))
	}

	// The writer's /commit always answers HTTP 200 through its
	// {status, data, code, error} envelope, domain errors included — a
	// non-2xx status never happens there, so the envelope's own
	// "status" field is the only place a rejected changeset shows up.
	var env struct {
		Status string `json:"status"`
		Data   struct {
			Commit string `json:"commit"`
		} `json:"data"`
		Code  int    `json:"code"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", regerr.NewClusterError(1, "Antwort des Schreibknotens konnte nicht gelesen werden: %v", err)
	}
	if env.Status != "ok" {
		return "", regerr.NewClusterError(env.Code, "Schreibknoten lehnte Changeset ab: %s", env.Error)
	}

	if r.Sync != nil {
		if err := r.Sync.PullAll(ctx, writerAddr); err != nil {
			return "", regerr.NewClusterError(1, "Synchronisierung nach Weiterleitung fehlgeschlagen: %v", err)
		}
	}

	return CommitID(env.Data.Commit), nil
}
