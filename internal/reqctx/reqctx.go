/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package reqctx carries the authenticated caller across package
// boundaries within a single request: internal/api's auth middleware
// sets it, and the commit Applier built in cmd/registryd reads it back
// to know whose key should verify the changeset's signature. Neither
// side needs to import the other.
package reqctx

import "context"

type contextKey struct{}

var userKey contextKey

// User is the minimal identity reqctx carries; internal/metastore.User
// converts to it trivially.
type User struct {
	ID    int64
	Email string
}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext retrieves the user set by WithUser, if any.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}
