/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metastore

import (
	"context"

	"grundbuch.dev/registry/internal/canon"
	"grundbuch.dev/registry/internal/regerr"
)

// Channel is how a subscriber is notified of a change.
type Channel string

const (
	ChannelWebhook Channel = "webhook"
	ChannelEmail   Channel = "email"
)

// Subscription is a row of abonnements: one user watching one
// land-title key over one channel, with an optional free-text
// reference ("Aktenzeichen") the subscriber attaches for their own
// bookkeeping.
type Subscription struct {
	ID           int64
	UserID       int64
	Key          canon.DocKey
	Kanal        Channel
	Ziel         string // webhook URL or email address
	Aktenzeichen string // optional free-text reference
}

// CreateSubscription inserts or reuses an existing identical row.
func (s *Store) CreateSubscription(ctx context.Context, sub Subscription) (int64, error) {
	var id int64
	err := s.write.QueryRowContext(ctx, `
		INSERT INTO abonnements (benutzer_id, amtsgericht, bezirk, blatt, kanal, ziel, aktenzeichen)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (benutzer_id, amtsgericht, bezirk, blatt, kanal, ziel) DO UPDATE SET aktenzeichen = excluded.aktenzeichen
		RETURNING id`,
		sub.UserID, sub.Key.Amtsgericht, sub.Key.Bezirk, sub.Key.Blatt, string(sub.Kanal), sub.Ziel, sub.Aktenzeichen).Scan(&id)
	if err != nil {
		return 0, regerr.NewStorageError(1, "Abonnement konnte nicht gespeichert werden: %v", err)
	}
	return id, nil
}

// DeleteSubscription removes a subscription by id, scoped to its owner.
func (s *Store) DeleteSubscription(ctx context.Context, userID, subID int64) error {
	if _, err := s.write.ExecContext(ctx, `DELETE FROM abonnements WHERE id = ? AND benutzer_id = ?`, subID, userID); err != nil {
		return regerr.NewStorageError(1, "Abonnement konnte nicht gelöscht werden: %v", err)
	}
	return nil
}

// SubscriptionsForUser lists a user's own subscriptions.
func (s *Store) SubscriptionsForUser(ctx context.Context, userID int64) ([]Subscription, error) {
	rows, err := s.read.QueryContext(ctx, `
		SELECT id, benutzer_id, amtsgericht, bezirk, blatt, kanal, ziel, aktenzeichen FROM abonnements WHERE benutzer_id = ?`, userID)
	if err != nil {
		return nil, regerr.NewStorageError(1, "Abonnements konnten nicht gelesen werden: %v", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// SubscriptionsForKey lists every subscriber watching a given land
// title key, used by internal/notify to fan out a commit.
func (s *Store) SubscriptionsForKey(ctx context.Context, key canon.DocKey) ([]Subscription, error) {
	rows, err := s.read.QueryContext(ctx, `
		SELECT id, benutzer_id, amtsgericht, bezirk, blatt, kanal, ziel, aktenzeichen FROM abonnements
		WHERE amtsgericht = ? AND bezirk = ? AND blatt = ?`, key.Amtsgericht, key.Bezirk, key.Blatt)
	if err != nil {
		return nil, regerr.NewStorageError(1, "Abonnements konnten nicht gelesen werden: %v", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func scanSubscriptions(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]Subscription, error) {
	var out []Subscription
	for rows.Next() {
		var sub Subscription
		var kanal string
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Key.Amtsgericht, &sub.Key.Bezirk, &sub.Key.Blatt, &kanal, &sub.Ziel, &sub.Aktenzeichen); err != nil {
			return nil, regerr.NewStorageError(1, "Abonnementzeile konnte nicht gelesen werden: %v", err)
		}
		sub.Kanal = Channel(kanal)
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, regerr.NewStorageError(1, "Abonnements konnten nicht iteriert werden: %v", err)
	}
	return out, nil
}
