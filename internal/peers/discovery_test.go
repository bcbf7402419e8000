/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package peers

import (
	"context"
	"testing"
)

func TestStaticDiscoveryParsesPeerList(t *testing.T) {
	d := NewStatic(" https://a.internal , https://b.internal,,", "https://writer.internal")

	got, err := d.ListPeers(context.Background())
	if err != nil {
		t.Fatalf("ListPeers: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d peers, want 2: %+v", len(got), got)
	}
	if got[0].Address != "https://a.internal" || got[1].Address != "https://b.internal" {
		t.Fatalf("unexpected peer addresses: %+v", got)
	}
}

func TestStaticDiscoveryRejectsMissingWriter(t *testing.T) {
	d := NewStatic("", "")
	if _, err := d.WriterAddress(context.Background()); err == nil {
		t.Fatal("expected error for unconfigured writer address")
	}
}
