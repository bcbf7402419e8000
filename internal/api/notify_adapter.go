/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package api

import (
	"context"

	"grundbuch.dev/registry/internal/canon"
	"grundbuch.dev/registry/internal/metastore"
	"grundbuch.dev/registry/internal/notify"
)

// metaSubscriptions and metaClaimer adapt *metastore.Store to the
// narrow notify.SubscriptionLister and notify.Claimer interfaces.
// notify stays unaware of metastore's row types; this is the one place
// the two shapes meet.
type metaSubscriptions struct{ meta *metastore.Store }

func (m metaSubscriptions) SubscriptionsForKey(ctx context.Context, key canon.DocKey) ([]notify.Subscription, error) {
	rows, err := m.meta.SubscriptionsForKey(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make([]notify.Subscription, len(rows))
	for i, row := range rows {
		out[i] = notify.Subscription{
			ID:        row.ID,
			Key:       row.Key,
			Channel:   string(row.Kanal),
			Target:    row.Ziel,
			Reference: row.Aktenzeichen,
		}
	}
	return out, nil
}

type metaClaimer struct{ meta *metastore.Store }

func (m metaClaimer) ClaimNotification(ctx context.Context, commitID string, subscriptionID int64) (bool, error) {
	return m.meta.ClaimNotification(ctx, commitID, subscriptionID)
}

// notifyCommit fans a successful commit out to subscribers of every
// document it touched. Delivery failures are logged, never surfaced to
// the HTTP caller: the write already happened.
func (s *Server) notifyCommit(ctx context.Context, commit string, touched []canon.DocKey) []error {
	return notify.Notify(ctx, commit, touched,
		metaSubscriptions{meta: s.Meta},
		metaClaimer{meta: s.Meta},
		notify.Sinks{Mail: s.Mail, ServerURL: s.PublicURL},
	)
}
