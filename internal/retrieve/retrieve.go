// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

// Package retrieve ranks a document's fragments against a query by cosine
// similarity. It performs an exact scan; corpora are per-document and small.
package retrieve

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/docent-dev/docent/internal/store"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

// DefaultTopK is used when Search is called with topK <= 0.
const DefaultTopK = 5

// epsilon keeps the cosine denominator non-zero for zero vectors.
const epsilon = 1e-9

// Source yields a document's fragments in insertion order.
type Source interface {
	QueryByDoc(ctx context.Context, docID string) ([]*store.EmbeddingRecord, error)
}

// Embedder is the infallible embedding capability.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Recorder counts searches.
type Recorder interface {
	IncRetrieval(empty bool)
}

// Result is a fragment with its similarity to the query.
type Result struct {
	Record *store.EmbeddingRecord
	Score  float64
}

// Retriever performs similarity search over one document at a time.
type Retriever struct {
	source   Source
	embedder Embedder
	recorder Recorder
}

func New(source Source, embedder Embedder, recorder Recorder) *Retriever {
	return &Retriever{source: source, embedder: embedder, recorder: recorder}
}

// Search returns up to topK fragments of docID ordered by descending score.
// Equal scores keep insertion order. A document with no fragments yields an
// empty result without embedding the query.
func (r *Retriever) Search(ctx context.Context, docID, query string, topK int) ([]Result, error) {
	if docID == "" {
		return nil, docerr.New(docerr.CodeRetrieveInvalidInput, "doc id is required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, docerr.New(docerr.CodeRetrieveInvalidInput, "query is required", docerr.FieldDocID(docID))
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	recs, err := r.source.QueryByDoc(ctx, docID)
	if err != nil {
		return nil, err
	}
	if r.recorder != nil {
		r.recorder.IncRetrieval(len(recs) == 0)
	}
	if len(recs) == 0 {
		return []Result{}, nil
	}

	qv := r.embedder.Embed(ctx, query)
	results := make([]Result, len(recs))
	for i, rec := range recs {
		results[i] = Result{Record: rec, Score: Cosine(qv, rec.Vector)}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.Seq < results[j].Record.Seq
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Cosine returns dot(a,b) / (|a|*|b| + 1e-9). Vectors of different length
// score 0, as does any zero vector.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + epsilon)
}
