/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package canon implements the canonical form shared by the signature
// verifier and the document store: UTF-8 JSON, keys in a fixed lexical
// order, two-space indent, CRLF line endings. The same function is used
// as signing input and as the on-disk representation, so the two are
// byte-identical by construction rather than by convention.
package canon

import (
	"fmt"
	"strings"
)

// DocKey identifies a single land-title record.
type DocKey struct {
	Amtsgericht string `json:"amtsgericht"`
	Bezirk      string `json:"bezirk"`
	Blatt       int64  `json:"blatt"`
}

func (k DocKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Amtsgericht, k.Bezirk, k.Blatt)
}

// Valid reports whether k's segments are safe to use as path components:
// non-empty and free of path separators or traversal sequences.
func (k DocKey) Valid() bool {
	if k.Amtsgericht == "" || k.Bezirk == "" || k.Blatt <= 0 {
		return false
	}
	for _, s := range []string{k.Amtsgericht, k.Bezirk} {
		if strings.ContainsAny(s, "/\\") || strings.Contains(s, "..") {
			return false
		}
	}
	return true
}

// Document is a land-title record. Body is an opaque, canonicalisable
// JSON value (object, array, or scalar) — the core never interprets its
// contents, only reserialises them deterministically.
type Document struct {
	Key  DocKey `json:"key"`
	Body any    `json:"body"`
}

// ChangePair is a modification of an existing document.
type ChangePair struct {
	Old Document `json:"old"`
	New Document `json:"new"`
}

// Payload is the data sub-object of a Changeset: the part that is
// canonicalised and signed.
type Payload struct {
	New     []Document   `json:"new"`
	Changed []ChangePair `json:"changed"`
}

// Changeset is a signed batch of document creations/modifications.
type Changeset struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	SignerFingerprint string `json:"signerFingerprint"`
	HashTag           string `json:"hashTag"`
	Signature         []byte `json:"signature"`
	Payload           Payload `json:"payload"`
}

// Touched returns the distinct document keys this changeset writes.
func (c Changeset) Touched() []DocKey {
	keys := make([]DocKey, 0, len(c.Payload.New)+len(c.Payload.Changed))
	seen := make(map[DocKey]bool, cap(keys))
	for _, d := range c.Payload.New {
		if !seen[d.Key] {
			seen[d.Key] = true
			keys = append(keys, d.Key)
		}
	}
	for _, p := range c.Payload.Changed {
		if !seen[p.New.Key] {
			seen[p.New.Key] = true
			keys = append(keys, p.New.Key)
		}
	}
	return keys
}
