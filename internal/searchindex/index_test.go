/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package searchindex

import (
	"context"
	"testing"

	"grundbuch.dev/registry/internal/canon"
)

func TestMemoryIndexFindsDocumentByKeyword(t *testing.T) {
	idx := NewMemory()
	ctx := context.Background()

	doc := canon.Document{
		Key:  canon.DocKey{Amtsgericht: "Prenzlau", Bezirk: "Seeluebbe", Blatt: 42},
		Body: map[string]any{"eigentuemer": "Mustermann", "belastungen": []any{"Grundschuld"}},
	}
	if err := idx.AddDocument(ctx, doc); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	got, err := idx.Query(ctx, "Mustermann")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0] != doc.Key {
		t.Fatalf("got %v, want [%v]", got, doc.Key)
	}

	if got, _ := idx.Query(ctx, "nichtvorhanden"); len(got) != 0 {
		t.Fatalf("expected no hits for unknown term, got %v", got)
	}
}
