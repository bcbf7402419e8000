/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package notify fans a commit out to every subscriber watching one of
// its touched documents, over whichever channel each subscription
// names. Delivery is at-most-once per (commit, subscription) pair via
// a dedupe claim taken before any network call.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"grundbuch.dev/registry/internal/canon"
	"grundbuch.dev/registry/internal/mailer"
)

// Subscription is the subset of metastore.Subscription notify needs.
type Subscription struct {
	ID        int64
	Key       canon.DocKey
	Channel   string // "webhook" or "email"
	Target    string
	Reference string // optional free-text Aktenzeichen the subscriber attached
}

// SubscriptionLister resolves who is watching a document key.
// Implemented by internal/api's adapter over
// internal/metastore.Store.SubscriptionsForKey.
type SubscriptionLister interface {
	SubscriptionsForKey(ctx context.Context, key canon.DocKey) ([]Subscription, error)
}

// Claimer is the dedupe gate. Implemented by
// internal/metastore.Store.ClaimNotification.
type Claimer interface {
	ClaimNotification(ctx context.Context, commitID string, subscriptionID int64) (bool, error)
}

// Sinks delivers a notification over a concrete channel.
type Sinks struct {
	HTTPClient *http.Client
	Mail       mailer.SMTP

	// ServerURL is this node's own externally reachable base address,
	// stamped into every outbound webhook payload as server_url.
	ServerURL string
}

// webhookPayload is the JSON body posted to a webhook subscription.
type webhookPayload struct {
	ServerURL   string `json:"server_url"`
	Amtsgericht string `json:"amtsgericht"`
	Bezirk      string `json:"bezirk"`
	Blatt       int64  `json:"blatt"`
	Target      string `json:"target"`
	Reference   string `json:"reference"`
	CommitID    string `json:"commit_id"`
}

const webhookTimeout = 10 * time.Second

// Notify delivers commit's effect on each of touched to every
// subscriber, returning every delivery error encountered (never
// propagated to the caller that triggered the commit — a failed
// notification never undoes or blocks the write.
func Notify(ctx context.Context, commit string, touched []canon.DocKey, subs SubscriptionLister, claims Claimer, sinks Sinks) []error {
	var errs []error
	for _, key := range touched {
		subscriptions, err := subs.SubscriptionsForKey(ctx, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("notify: listing subscribers for %s: %w", key, err))
			continue
		}
		for _, sub := range subscriptions {
			claimed, err := claims.ClaimNotification(ctx, commit, sub.ID)
			if err != nil {
				errs = append(errs, fmt.Errorf("notify: claiming %s for subscription %d: %w", commit, sub.ID, err))
				continue
			}
			if !claimed {
				continue // already attempted for this (commit, subscription) pair
			}
			if err := deliver(ctx, commit, sub, sinks); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

func deliver(ctx context.Context, commit string, sub Subscription, sinks Sinks) error {
	switch sub.Channel {
	case "webhook":
		return deliverWebhook(ctx, commit, sub, sinks)
	case "email":
		return deliverEmail(ctx, commit, sub, sinks)
	default:
		return fmt.Errorf("notify: unsupported channel %q for subscription %d", sub.Channel, sub.ID)
	}
}

func deliverWebhook(ctx context.Context, commit string, sub Subscription, sinks Sinks) error {
	body, err := json.Marshal(webhookPayload{
		ServerURL:   sinks.ServerURL,
		Amtsgericht: sub.Key.Amtsgericht,
		Bezirk:      sub.Key.Bezirk,
		Blatt:       sub.Key.Blatt,
		Target:      sub.Target,
		Reference:   sub.Reference,
		CommitID:    commit,
	})
	if err != nil {
		return fmt.Errorf("notify: encoding webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: building webhook request for subscription %d: %w", sub.ID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := sinks.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: delivering webhook for subscription %d: %w", sub.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook for subscription %d returned status %d", sub.ID, resp.StatusCode)
	}
	return nil
}

func deliverEmail(ctx context.Context, commit string, sub Subscription, sinks Sinks) error {
	if sinks.Mail == nil {
		return fmt.Errorf("notify: no mailer configured for subscription %d", sub.ID)
	}
	subject := fmt.Sprintf("Änderung an %s", sub.Key.String())
	body := fmt.Sprintf("Commit %s hat %s geändert.", commit, sub.Key.String())
	if err := sinks.Mail.Send(ctx, sub.Target, subject, body); err != nil {
		return fmt.Errorf("notify: sending email for subscription %d: %w", sub.ID, err)
	}
	return nil
}
