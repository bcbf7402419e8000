/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package peers resolves the cluster topology: who else is out there,
// and which one of them is currently the writer. StaticDiscovery, the
// only implementation here, is deliberately dumb — a fixed list read
// once from configuration — because building a real membership
// protocol is out of scope; the interface is what downstream code
// (internal/replica, internal/sync) depends on.
package peers

import (
	"context"
	"strings"

	"grundbuch.dev/registry/internal/regerr"
)

// Peer is one other node in the cluster.
type Peer struct {
	Address string // base URL, e.g. "https://grundbuch-2.internal:8443"
}

// Discovery resolves cluster topology.
type Discovery interface {
	ListPeers(ctx context.Context) ([]Peer, error)
	WriterAddress(ctx context.Context) (string, error)
}

// StaticDiscovery reads a fixed comma-separated peer list and a fixed
// writer address from configuration, set once at startup.
type StaticDiscovery struct {
	peers  []Peer
	writer string
}

// NewStatic builds a StaticDiscovery from a comma-separated peer list
// (as set by GRUNDBUCH_PEERS) and the writer's address (GRUNDBUCH_WRITER_ADDR).
func NewStatic(peerList, writerAddr string) *StaticDiscovery {
	var peers []Peer
	for _, addr := range strings.Split(peerList, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		peers = append(peers, Peer{Address: addr})
	}
	return &StaticDiscovery{peers: peers, writer: strings.TrimSpace(writerAddr)}
}

func (d *StaticDiscovery) ListPeers(ctx context.Context) ([]Peer, error) {
	return d.peers, nil
}

func (d *StaticDiscovery) WriterAddress(ctx context.Context) (string, error) {
	if d.writer == "" {
		return "", regerr.NewClusterError(1, "kein Schreibknoten konfiguriert")
	}
	return d.writer, nil
}
