// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/docent-dev/docent/internal/store"
	"github.com/docent-dev/docent/internal/store/sqlite"
	docerr "github.com/docent-dev/docent/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingStore_AppendAndList(t *testing.T) {
	ctx := context.Background()
	es, err := sqlite.NewEmbeddingStore(testDBPath(t, "embeddings"), 3)
	require.NoError(t, err)
	defer func() { _ = es.Close() }()
	assert.NotEmpty(t, es.VecVersion())

	action := &store.EmbeddingRecord{
		ID: "a1", DocID: "lease", Kind: store.KindAction,
		Text:     "subject: tenant / action: pay rent",
		Vector:   []float32{1, 0, 0},
		Metadata: map[string]any{"who": "tenant", "action": "pay rent"},
	}
	page := &store.EmbeddingRecord{
		ID: "p1", DocID: "lease", Kind: store.KindPage, PageNum: intPtr(1),
		Text:     "The tenant pays rent monthly.",
		Vector:   []float32{0.5, 0.5, 0},
		Metadata: map[string]any{"page": 1},
	}
	other := &store.EmbeddingRecord{
		ID: "x1", DocID: "other", Kind: store.KindPage, PageNum: intPtr(1),
		Text: "unrelated", Vector: []float32{0, 0, 1},
	}

	require.NoError(t, es.Append(ctx, action))
	require.NoError(t, es.Append(ctx, other))
	require.NoError(t, es.Append(ctx, page))
	assert.Less(t, action.Seq, page.Seq)

	recs, err := es.ListByDoc(ctx, "lease")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "a1", recs[0].ID)
	assert.Equal(t, store.KindAction, recs[0].Kind)
	assert.Nil(t, recs[0].PageNum)
	assert.Equal(t, []float32{1, 0, 0}, recs[0].Vector)
	assert.Equal(t, "tenant", recs[0].Metadata["who"])

	assert.Equal(t, "p1", recs[1].ID)
	require.NotNil(t, recs[1].PageNum)
	assert.Equal(t, 1, *recs[1].PageNum)
	// JSON round-trip yields float64 numbers.
	assert.Equal(t, float64(1), recs[1].Metadata["page"])
	assert.False(t, recs[1].CreatedAt.IsZero())

	n, err := es.CountByDoc(ctx, "lease")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEmbeddingStore_Durable(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t, "durable")

	es, err := sqlite.NewEmbeddingStore(path, 3)
	require.NoError(t, err)
	require.NoError(t, es.Append(ctx, &store.EmbeddingRecord{
		ID: "a1", DocID: "d", Kind: store.KindAction, Text: "keep me", Vector: []float32{1, 2, 3},
	}))
	require.NoError(t, es.Close())

	reopened, err := sqlite.NewEmbeddingStore(path, 3)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	recs, err := reopened.ListByDoc(ctx, "d")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "keep me", recs[0].Text)
	assert.Equal(t, []float32{1, 2, 3}, recs[0].Vector)
}

func TestEmbeddingStore_RejectsInvalidRecord(t *testing.T) {
	es, err := sqlite.NewEmbeddingStore(testDBPath(t, "invalid"), 3)
	require.NoError(t, err)
	defer func() { _ = es.Close() }()

	err = es.Append(context.Background(), &store.EmbeddingRecord{
		ID: "a1", DocID: "d", Kind: store.KindAction, Text: "x", Vector: []float32{1},
	})
	require.Error(t, err)
	assert.True(t, docerr.IsInvalidInput(err))
}

func TestEmbeddingStore_DuplicateIDFails(t *testing.T) {
	ctx := context.Background()
	es, err := sqlite.NewEmbeddingStore(testDBPath(t, "dup"), 3)
	require.NoError(t, err)
	defer func() { _ = es.Close() }()

	rec := func() *store.EmbeddingRecord {
		return &store.EmbeddingRecord{ID: "same", DocID: "d", Kind: store.KindAction, Text: "x", Vector: []float32{1, 0, 0}}
	}
	require.NoError(t, es.Append(ctx, rec()))
	err = es.Append(ctx, rec())
	require.Error(t, err)
	assert.True(t, docerr.HasCode(err, docerr.CodeStoreDatabaseFailure))
}

func TestEmbeddingStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	es, err := sqlite.NewEmbeddingStore(testDBPath(t, "concurrent"), 3)
	require.NoError(t, err)
	defer func() { _ = es.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, es.Append(ctx, &store.EmbeddingRecord{
				ID: fmt.Sprintf("r%d", i), DocID: "d", Kind: store.KindAction,
				Text: fmt.Sprintf("fragment %d", i), Vector: []float32{float32(i), 1, 0},
			}))
		}(i)
	}
	wg.Wait()

	recs, err := es.ListByDoc(ctx, "d")
	require.NoError(t, err)
	assert.Len(t, recs, 20)
	for i := 1; i < len(recs); i++ {
		assert.Greater(t, recs[i].Seq, recs[i-1].Seq)
	}
}

func TestRegisteredBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rag.db")
	s, err := store.Open(&store.StorageConfig{Backend: "sqlite", Path: path, VectorDimensions: 3})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, ok := s.(*sqlite.EmbeddingStore)
	assert.True(t, ok)
	assert.FileExists(t, path)
}
