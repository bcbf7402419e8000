/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package api

import (
	"context"
	"net/http"
	"strings"

	"grundbuch.dev/registry/internal/regerr"
	"grundbuch.dev/registry/internal/reqctx"
)

// authMiddleware extracts a bearer token or Authentication cookie,
// resolves it via MetaStore, and rejects on missing/expired with the
// standard error envelope.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, regerr.NewAuthError(regerr.AuthBadToken, "kein Authentifizierungstoken"))
			return
		}
		user, err := s.Meta.UserFromToken(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		ctx = reqctx.WithUser(ctx, reqctx.User{ID: user.ID, Email: user.Email})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie("Authentication"); err == nil {
		return c.Value
	}
	return ""
}

// peerMiddleware gates the cluster-internal endpoints (/db, /pull,
// /pull-db, /get-db): only another node presenting the configured
// shared secret may call them. An empty PeerToken disables the whole
// group, which is the standalone-deployment default.
func (s *Server) peerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.PeerToken == "" || r.Header.Get("X-Grundbuch-Peer-Token") != s.PeerToken {
			writeError(w, regerr.NewAuthError(regerr.AuthBadToken, "kein gültiges Peer-Token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
