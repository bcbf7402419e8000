/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"grundbuch.dev/registry/internal/canon"
)

type fakeSubs struct {
	byKey map[string][]Subscription
}

func (f fakeSubs) SubscriptionsForKey(ctx context.Context, key canon.DocKey) ([]Subscription, error) {
	return f.byKey[key.String()], nil
}

type fakeClaimer struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func newFakeClaimer() *fakeClaimer { return &fakeClaimer{claimed: map[string]bool{}} }

func (c *fakeClaimer) ClaimNotification(ctx context.Context, commitID string, subscriptionID int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := commitID + "/" + string(rune(subscriptionID))
	if c.claimed[key] {
		return false, nil
	}
	c.claimed[key] = true
	return true, nil
}

func TestNotifyDeliversWebhooksAndSkipsDuplicateCommits(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	key := canon.DocKey{Amtsgericht: "Prenzlau", Bezirk: "Seeluebbe", Blatt: 42}
	subs := fakeSubs{byKey: map[string][]Subscription{
		key.String(): {{ID: 1, Key: key, Channel: "webhook", Target: srv.URL}},
	}}
	claims := newFakeClaimer()

	errs := Notify(context.Background(), "commit-1", []canon.DocKey{key}, subs, claims, Sinks{})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if hits != 1 {
		t.Fatalf("got %d webhook hits, want 1", hits)
	}

	// Re-notifying the same commit for the same subscription must be a no-op.
	errs = Notify(context.Background(), "commit-1", []canon.DocKey{key}, subs, claims, Sinks{})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors on re-notify: %v", errs)
	}
	if hits != 1 {
		t.Fatalf("got %d webhook hits after re-notify, want still 1 (deduped)", hits)
	}
}

func TestNotifyCollectsErrorsForUnsupportedChannel(t *testing.T) {
	key := canon.DocKey{Amtsgericht: "Prenzlau", Bezirk: "Seeluebbe", Blatt: 42}
	subs := fakeSubs{byKey: map[string][]Subscription{
		key.String(): {{ID: 1, Key: key, Channel: "carrier-pigeon", Target: "n/a"}},
	}}
	errs := Notify(context.Background(), "commit-1", []canon.DocKey{key}, subs, newFakeClaimer(), Sinks{})
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
}
