/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"

	"grundbuch.dev/registry/internal/authsig"
	"grundbuch.dev/registry/internal/canon"
	"grundbuch.dev/registry/internal/docstore"
	"grundbuch.dev/registry/internal/metastore"
	"grundbuch.dev/registry/internal/regerr"
	"grundbuch.dev/registry/internal/replica"
	"grundbuch.dev/registry/internal/reqctx"
)

// commitApplier is the replica.Applier this binary wires in: verify the
// changeset's signature against the authenticated caller's registered
// key, then write it through docstore. It is the one place authsig,
// metastore and docstore meet.
type commitApplier struct {
	meta *metastore.Store
	docs *docstore.Store
	// author is the identity attached to every git commit docstore
	// writes; it names the service, not the signer.
	author docstore.Author
}

func (a *commitApplier) Apply(ctx context.Context, cs canon.Changeset) (replica.CommitID, error) {
	user, ok := reqctx.UserFromContext(ctx)
	if !ok {
		return "", regerr.NewAuthError(regerr.AuthBadToken, "keine authentifizierte Identität im Kontext")
	}
	if err := authsig.Verify(ctx, a.meta, user.Email, cs.SignerFingerprint, cs.HashTag, cs.Payload, cs.Signature); err != nil {
		return "", err
	}

	id, err := a.docs.ApplyChangeset(ctx, a.author, resolverFunc(a.meta.ResolveLand), cs)
	if err != nil {
		return "", fmt.Errorf("applying changeset: %w", err)
	}
	return replica.CommitID(id), nil
}

// resolverFunc adapts a plain function to docstore.LandResolver.
type resolverFunc func(ctx context.Context, amtsgericht, bezirk string) (string, error)

func (f resolverFunc) ResolveLand(ctx context.Context, amtsgericht, bezirk string) (string, error) {
	return f(ctx, amtsgericht, bezirk)
}
