// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package store

import "context"

// EmbeddingStore is the durable, append-only corpus of embedded fragments.
//
// Implementations must be safe for concurrent Append and ListByDoc calls.
type EmbeddingStore interface {
	// Append persists a record and assigns its Seq. Records are never
	// updated or deleted.
	Append(ctx context.Context, rec *EmbeddingRecord) error
	// ListByDoc returns every record for docID in insertion order. The
	// returned slice is owned by the caller.
	ListByDoc(ctx context.Context, docID string) ([]*EmbeddingRecord, error)
	CountByDoc(ctx context.Context, docID string) (int, error)
	Close() error
}
