/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Command registryd runs the land-title registry's HTTP surface: login,
// signed commits, document and PDF download, search, subscriptions,
// access requests, and the cluster-internal replication endpoints.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	"github.com/sethvargo/go-envconfig"

	"grundbuch.dev/registry/internal/api"
	"grundbuch.dev/registry/internal/config"
	"grundbuch.dev/registry/internal/docstore"
	"grundbuch.dev/registry/internal/mailer"
	"grundbuch.dev/registry/internal/metastore"
	"grundbuch.dev/registry/internal/pdfrender"
	"grundbuch.dev/registry/internal/peers"
	"grundbuch.dev/registry/internal/replica"
	"grundbuch.dev/registry/internal/searchindex"
	"grundbuch.dev/registry/internal/sync"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config.Registryd
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	meta, err := metastore.Open(ctx, filepath.Join(cfg.DataDir, "grundbuch.db"))
	if err != nil {
		clog.FatalContextf(ctx, "opening metastore: %v", err)
	}
	defer meta.Close()

	docs, err := docstore.Open(ctx, filepath.Join(cfg.DataDir, "docs"))
	if err != nil {
		clog.FatalContextf(ctx, "opening docstore: %v", err)
	}

	discovery := peers.NewStatic(cfg.Peers, cfg.WriterAddr)
	syncEngine := sync.New(filepath.Join(cfg.DataDir, "docs"), filepath.Join(cfg.DataDir, "grundbuch.db"))

	applier := &commitApplier{
		meta:   meta,
		docs:   docs,
		author: docstore.Author{Name: cfg.CommitName, Email: cfg.CommitEmail},
	}

	mode := replica.Mode(cfg.Role)
	router := &replica.Router{
		Mode:      mode,
		Applier:   applier,
		Discovery: discovery,
		Sync:      syncEngine,
	}

	if mode == replica.ModeFollower {
		writerAddr, err := discovery.WriterAddress(ctx)
		if err != nil {
			clog.FatalContextf(ctx, "follower mode requires GRUNDBUCH_WRITER_ADDR: %v", err)
		}
		if err := syncEngine.PullAll(ctx, writerAddr); err != nil {
			clog.WarnContextf(ctx, "initial pull from writer failed, continuing to serve stale data: %v", err)
		}
	}

	var mail mailer.SMTP
	if cfg.SMTPHost != "" {
		mail = mailer.New(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}

	srv := &api.Server{
		Meta:      meta,
		Docs:      docs,
		Router:    router,
		Sync:      syncEngine,
		Discovery: discovery,
		Index:     searchindex.NewMemory(),
		Renderer:  pdfrender.New(),
		Mail:      mail,
		PublicURL: cfg.PublicURL,
		PeerToken: cfg.PeerToken,
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			clog.WarnContextf(ctx, "graceful shutdown failed: %v", err)
		}
	}()

	clog.InfoContextf(ctx, "registryd listening on %s in %s mode", httpServer.Addr, mode)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		clog.FatalContextf(ctx, "server failed: %v", err)
	}
}
