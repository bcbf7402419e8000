/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package pdfrender is the narrow interface internal/api depends on to
// produce a printable extract for a land-title record. Real PDF
// rendering is out of scope; the default implementation exists only
// so the HTTP surface is fully wired.
package pdfrender

import (
	"context"

	"grundbuch.dev/registry/internal/canon"
	"grundbuch.dev/registry/internal/regerr"
)

// Renderer produces a PDF document for a land-title record.
type Renderer interface {
	Render(ctx context.Context, doc canon.Document) ([]byte, error)
}

type unimplemented struct{}

// New returns the default Renderer, which always fails with
// regerr.ErrNotImplemented, surfaced by internal/api as the spec's
// standard error envelope.
func New() Renderer { return unimplemented{} }

func (unimplemented) Render(ctx context.Context, doc canon.Document) ([]byte, error) {
	return nil, regerr.ErrNotImplemented
}
