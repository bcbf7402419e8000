/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grundbuch.dev/registry/internal/docstore"
	"grundbuch.dev/registry/internal/mailer"
	"grundbuch.dev/registry/internal/metastore"
	"grundbuch.dev/registry/internal/pdfrender"
	"grundbuch.dev/registry/internal/peers"
	"grundbuch.dev/registry/internal/replica"
	"grundbuch.dev/registry/internal/searchindex"
	"grundbuch.dev/registry/internal/sync"
)

// Server wires every external collaborator behind one router. Its
// fields are the concrete implementations cmd/registryd
// constructs; the narrow interfaces those concerns actually need
// (PeerDiscovery, Index, Renderer, SMTP) are defined by their own
// packages, not re-declared here.
type Server struct {
	Meta      *metastore.Store
	Docs      *docstore.Store
	Router    *replica.Router
	Sync      *sync.Engine
	Discovery peers.Discovery
	Index     searchindex.Index
	Renderer  pdfrender.Renderer
	Mail      mailer.SMTP
	PublicURL string // this node's externally reachable base address, stamped into webhook payloads
	PeerToken string // shared secret the writer and its followers present to each other on cluster-internal endpoints
}

// Routes builds the chi router for this server.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(clogMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/commit", s.handleCommit)
		r.Post("/upload", s.handleCommit)
		r.Get("/download/doc/{amtsgericht}/{bezirk}/{blatt}", s.handleDownloadDoc)
		r.Get("/download/pdf/{amtsgericht}/{bezirk}/{blatt}", s.handleDownloadPDF)
		r.Get("/search/{term}", s.handleSearch)
		r.Get("/subscription/{kind}/{amtsgericht}/{bezirk}/{blatt}", s.handleListSubscription)
		r.Post("/subscription/{kind}/{amtsgericht}/{bezirk}/{blatt}", s.handleCreateSubscription)
		r.Delete("/subscription/{kind}/{amtsgericht}/{bezirk}/{blatt}", s.handleDeleteSubscription)
		r.Post("/access-request", s.handleCreateAccessRequest)
		r.Get("/konto", s.handleKonto)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.peerMiddleware)
		r.Post("/db", s.handleDB)
		r.Post("/pull", s.handlePull)
		r.Post("/pull-db", s.handlePullDB)
		r.Post("/get-db", s.handleGetDB)
	})

	return r
}

// clogMiddleware is the small adapter that makes chi's per-request
// logging go through clog instead of the stdlib logger middleware
// would otherwise default to.
func clogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		clog.FromContext(r.Context()).Infof("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type contextKey string

const userContextKey contextKey = "grundbuch-user"

func userFromContext(ctx context.Context) (metastore.User, bool) {
	u, ok := ctx.Value(userContextKey).(metastore.User)
	return u, ok
}
