// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package store

import (
	"strings"
	"time"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

// RecordKind distinguishes the two fragment families stored per document.
type RecordKind string

const (
	KindPage   RecordKind = "page"
	KindAction RecordKind = "action"
)

// Valid reports whether the kind is a known fragment kind.
func (k RecordKind) Valid() bool {
	switch k {
	case KindPage, KindAction:
		return true
	default:
		return false
	}
}

// EmbeddingRecord is one embedded text fragment belonging to a document.
// Records are immutable once appended.
type EmbeddingRecord struct {
	ID      string
	DocID   string
	Kind    RecordKind
	PageNum *int // set only for KindPage
	Text    string
	Vector  []float32
	// Metadata is free-form and stored as JSON.
	Metadata map[string]any
	// Seq is assigned by the backend on append and increases with
	// insertion order. Retrieval uses it to break score ties.
	Seq       int64
	CreatedAt time.Time
}

// Validate checks that the record is well formed for a store with the given
// vector dimensions. A dims value of 0 skips the length check.
func (r *EmbeddingRecord) Validate(dims int) error {
	if r == nil {
		return docerr.New(docerr.CodeStoreInvalidInput, "record: nil")
	}
	if r.ID == "" {
		return docerr.New(docerr.CodeStoreInvalidInput, "record: ID is required")
	}
	if r.DocID == "" {
		return docerr.New(docerr.CodeStoreInvalidInput, "record: DocID is required")
	}
	if !r.Kind.Valid() {
		return docerr.New(docerr.CodeStoreInvalidInput, "record: invalid kind", docerr.FieldKind(string(r.Kind)))
	}
	if r.PageNum != nil && r.Kind != KindPage {
		return docerr.New(docerr.CodeStoreInvalidInput, "record: page number set on non-page record",
			docerr.FieldDocID(r.DocID))
	}
	if strings.TrimSpace(r.Text) == "" {
		return docerr.New(docerr.CodeStoreInvalidInput, "record: Text is required", docerr.FieldDocID(r.DocID))
	}
	if dims > 0 && len(r.Vector) != dims {
		return docerr.Errorf(docerr.CodeStoreInvalidInput,
			"record: vector has %d dimensions, store expects %d", len(r.Vector), dims)
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate backend-owned data.
func (r *EmbeddingRecord) Clone() *EmbeddingRecord {
	c := *r
	if r.PageNum != nil {
		n := *r.PageNum
		c.PageNum = &n
	}
	c.Vector = append([]float32(nil), r.Vector...)
	if r.Metadata != nil {
		c.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
