// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/docent-dev/docent/internal/store"
	docerr "github.com/docent-dev/docent/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func validRecord(id, docID string) *store.EmbeddingRecord {
	return &store.EmbeddingRecord{
		ID:     id,
		DocID:  docID,
		Kind:   store.KindAction,
		Text:   "subject: tenant / action: pay rent",
		Vector: []float32{1, 0, 0},
	}
}

func TestEmbeddingRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *store.EmbeddingRecord)
		wantErr bool
	}{
		{name: "valid action", mutate: func(*store.EmbeddingRecord) {}},
		{name: "valid page", mutate: func(r *store.EmbeddingRecord) { r.Kind = store.KindPage; r.PageNum = intPtr(1) }},
		{name: "missing id", mutate: func(r *store.EmbeddingRecord) { r.ID = "" }, wantErr: true},
		{name: "missing doc", mutate: func(r *store.EmbeddingRecord) { r.DocID = "" }, wantErr: true},
		{name: "unknown kind", mutate: func(r *store.EmbeddingRecord) { r.Kind = "chapter" }, wantErr: true},
		{name: "page number on action", mutate: func(r *store.EmbeddingRecord) { r.PageNum = intPtr(2) }, wantErr: true},
		{name: "blank text", mutate: func(r *store.EmbeddingRecord) { r.Text = "  \n\t" }, wantErr: true},
		{name: "wrong dimensions", mutate: func(r *store.EmbeddingRecord) { r.Vector = []float32{1, 2} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord("r1", "doc")
			tt.mutate(r)
			err := r.Validate(3)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, docerr.IsInvalidInput(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEmbeddingRecord_CloneIsDeep(t *testing.T) {
	r := validRecord("r1", "doc")
	r.Kind = store.KindPage
	r.PageNum = intPtr(4)
	r.Metadata = map[string]any{"page": 4}

	c := r.Clone()
	c.Vector[0] = 9
	*c.PageNum = 7
	c.Metadata["page"] = 7

	assert.Equal(t, float32(1), r.Vector[0])
	assert.Equal(t, 4, *r.PageNum)
	assert.Equal(t, 4, r.Metadata["page"])
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := store.Open(&store.StorageConfig{Backend: "cassandra"})
	require.Error(t, err)
	assert.True(t, docerr.IsUnsupported(err))
	assert.Contains(t, err.Error(), "cassandra")
}

func TestOpen_Memory(t *testing.T) {
	s, err := store.Open(&store.StorageConfig{Backend: "memory", VectorDimensions: 3})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	assert.Contains(t, store.Backends(), "memory")

	require.NoError(t, s.Append(context.Background(), validRecord("r1", "doc")))
	n, err := s.CountByDoc(context.Background(), "doc")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStorageConfig_Dimensions(t *testing.T) {
	assert.Equal(t, store.DefaultVectorDimensions, (&store.StorageConfig{}).Dimensions())
	assert.Equal(t, 8, (&store.StorageConfig{VectorDimensions: 8}).Dimensions())
}

func TestMemoryStore_InsertionOrderPerDoc(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, validRecord(fmt.Sprintf("a%d", i), "doc-a")))
		require.NoError(t, s.Append(ctx, validRecord(fmt.Sprintf("b%d", i), "doc-b")))
	}

	recs, err := s.ListByDoc(ctx, "doc-a")
	require.NoError(t, err)
	require.Len(t, recs, 5)
	for i, r := range recs {
		assert.Equal(t, fmt.Sprintf("a%d", i), r.ID)
		if i > 0 {
			assert.Greater(t, r.Seq, recs[i-1].Seq)
		}
		assert.False(t, r.CreatedAt.IsZero())
	}

	empty, err := s.ListByDoc(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore_ListIsCallerOwned(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(3)
	require.NoError(t, s.Append(ctx, validRecord("r1", "doc")))

	first, err := s.ListByDoc(ctx, "doc")
	require.NoError(t, err)
	first[0].Text = "mutated"

	second, err := s.ListByDoc(ctx, "doc")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second[0].Text)
}

func TestMemoryStore_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(3)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Append(ctx, validRecord(fmt.Sprintf("r%d", i), "doc")))
		}(i)
	}
	wg.Wait()

	n, err := s.CountByDoc(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}

func TestMemoryStore_RejectsInvalid(t *testing.T) {
	s := store.NewMemoryStore(3)
	r := validRecord("r1", "doc")
	r.Vector = []float32{1}
	err := s.Append(context.Background(), r)
	require.Error(t, err)
	assert.True(t, docerr.IsInvalidInput(err))
}

func TestVectorCodecRoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4028235e38}
	blob := store.EncodeVector(in)
	assert.Len(t, blob, 16)

	out, err := store.DecodeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = store.DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
