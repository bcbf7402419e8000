/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package searchindex is the narrow interface behind /search/{term}.
// A real search engine is out of scope; Memory is an in-process
// inverted index over keywords, good enough to exercise
// the endpoint end to end and nothing more.
package searchindex

import (
	"context"
	"strings"
	"sync"

	"grundbuch.dev/registry/internal/canon"
)

// Index maps keywords to the document keys that contain them.
type Index interface {
	AddDocument(ctx context.Context, doc canon.Document) error
	Query(ctx context.Context, term string) ([]canon.DocKey, error)
}

// Memory is a simple inverted index: every string value found while
// walking a document's Body is lowercased and tokenized on
// whitespace, each resulting token pointing back at the document's key.
type Memory struct {
	mu    sync.RWMutex
	terms map[string]map[string]canon.DocKey // term -> key.String() -> key
}

// NewMemory returns an empty Memory index.
func NewMemory() *Memory {
	return &Memory{terms: make(map[string]map[string]canon.DocKey)}
}

func (m *Memory) AddDocument(ctx context.Context, doc canon.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, token := range tokenize(doc.Body) {
		bucket, ok := m.terms[token]
		if !ok {
			bucket = make(map[string]canon.DocKey)
			m.terms[token] = bucket
		}
		bucket[doc.Key.String()] = doc.Key
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, term string) ([]canon.DocKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bucket := m.terms[strings.ToLower(strings.TrimSpace(term))]
	out := make([]canon.DocKey, 0, len(bucket))
	for _, k := range bucket {
		out = append(out, k)
	}
	return out, nil
}

func tokenize(v any) []string {
	var tokens []string
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			for _, tok := range strings.Fields(t) {
				tokens = append(tokens, strings.ToLower(strings.Trim(tok, ".,;:!?()\"'")))
			}
		case map[string]any:
			for _, val := range t {
				walk(val)
			}
		case []any:
			for _, val := range t {
				walk(val)
			}
		}
	}
	walk(v)
	return tokens
}
