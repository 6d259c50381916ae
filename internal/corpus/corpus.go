// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

// Package corpus is the per-document embedding store: it embeds fragments
// on insert and hands back a document's fragments in insertion order.
package corpus

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docent-dev/docent/internal/store"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

// Embedder is the infallible embedding capability.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Recorder receives per-kind insert counts.
type Recorder interface {
	IncFragment(kind string)
}

// Corpus couples an EmbeddingStore backend with an Embedder.
type Corpus struct {
	backend  store.EmbeddingStore
	embedder Embedder
	recorder Recorder
	now      func() time.Time
}

// New creates a Corpus. recorder may be nil.
func New(backend store.EmbeddingStore, embedder Embedder, recorder Recorder) *Corpus {
	return &Corpus{backend: backend, embedder: embedder, recorder: recorder, now: time.Now}
}

// Insert embeds text and appends it as a fragment of docID. Blank or
// whitespace-only text is skipped and reports 0 without error; a stored
// fragment reports 1. pageNum must be set only for page fragments.
func (c *Corpus) Insert(ctx context.Context, docID string, kind store.RecordKind, pageNum *int, text string, metadata map[string]any) (int, error) {
	if docID == "" {
		return 0, docerr.New(docerr.CodeIngestInvalidInput, "doc id is required")
	}
	if !kind.Valid() {
		return 0, docerr.New(docerr.CodeIngestInvalidInput, "unknown fragment kind", docerr.FieldKind(string(kind)))
	}
	if pageNum != nil && kind != store.KindPage {
		return 0, docerr.New(docerr.CodeIngestInvalidInput, "page number is only valid for page fragments",
			docerr.FieldDocID(docID))
	}
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}

	rec := &store.EmbeddingRecord{
		ID:        uuid.NewString(),
		DocID:     docID,
		Kind:      kind,
		PageNum:   pageNum,
		Text:      text,
		Vector:    c.embedder.Embed(ctx, text),
		Metadata:  metadata,
		CreatedAt: c.now().UTC(),
	}
	if err := c.backend.Append(ctx, rec); err != nil {
		return 0, err
	}
	if c.recorder != nil {
		c.recorder.IncFragment(string(kind))
	}
	return 1, nil
}

// QueryByDoc returns every fragment of docID in insertion order. Each call
// yields a fresh slice; a document with no fragments yields an empty one.
func (c *Corpus) QueryByDoc(ctx context.Context, docID string) ([]*store.EmbeddingRecord, error) {
	recs, err := c.backend.ListByDoc(ctx, docID)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*store.EmbeddingRecord{}
	}
	return recs, nil
}

// Count returns the number of fragments stored for docID.
func (c *Corpus) Count(ctx context.Context, docID string) (int, error) {
	return c.backend.CountByDoc(ctx, docID)
}

// Embedder exposes the embedding capability for query-side use.
func (c *Corpus) Embedder() Embedder { return c.embedder }

// Close closes the backend.
func (c *Corpus) Close() error { return c.backend.Close() }
