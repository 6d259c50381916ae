// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package store

import (
	"context"
	"sync"
	"time"
)

var _ EmbeddingStore = (*MemoryStore)(nil)

// MemoryStore is a non-durable EmbeddingStore kept entirely in process.
type MemoryStore struct {
	mu         sync.RWMutex
	dimensions int
	seq        int64
	byDoc      map[string][]*EmbeddingRecord
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore(dimensions int) *MemoryStore {
	return &MemoryStore{dimensions: dimensions, byDoc: make(map[string][]*EmbeddingRecord)}
}

func (m *MemoryStore) Append(ctx context.Context, rec *EmbeddingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.Validate(m.dimensions); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	rec.Seq = m.seq
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.byDoc[rec.DocID] = append(m.byDoc[rec.DocID], rec.Clone())
	return nil
}

func (m *MemoryStore) ListByDoc(ctx context.Context, docID string) ([]*EmbeddingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := m.byDoc[docID]
	out := make([]*EmbeddingRecord, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out, nil
}

func (m *MemoryStore) CountByDoc(_ context.Context, docID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byDoc[docID]), nil
}

func (m *MemoryStore) Close() error { return nil }
