/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metastore

import "context"

// KontoData is the account-detail payload returned to a logged-in
// user. Its shape mirrors the original's struct; the admin and
// bearbeiter branches below were never filled in upstream, so this
// reimplementation reproduces that behavior rather than inventing
// role-specific content it was never told the shape of.
type KontoData struct {
	Subscriptions []Subscription
	AccessGrants  []AccessRequest
}

// Konto returns account detail for the given user's role.
func (s *Store) Konto(ctx context.Context, u User) (KontoData, error) {
	switch u.Role {
	case RoleAdmin:
		// unimplemented upstream: original_source/src/db.rs's admin arm
		// of get_konto_data is empty and falls through to the zero value.
		return KontoData{}, nil
	case RoleBearbeiter:
		// unimplemented upstream: same for the editor arm.
		return KontoData{}, nil
	default:
		subs, err := s.SubscriptionsForUser(ctx, u.ID)
		if err != nil {
			return KontoData{}, err
		}
		grants, err := s.AccessRequestsForUser(ctx, u.Email)
		if err != nil {
			return KontoData{}, err
		}
		return KontoData{Subscriptions: subs, AccessGrants: grants}, nil
	}
}
