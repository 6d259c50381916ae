// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

// Package embed turns text into fixed-length vectors.
//
// Provider implementations may fail. Embedder wraps one and never does:
// on any failure it substitutes a zero vector of the configured length so
// ingestion and retrieval keep going with a degraded fragment.
package embed

import (
	"context"
	"log/slog"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

// Provider is a raw embedding backend.
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DegradationRecorder counts zero-vector fallbacks.
type DegradationRecorder interface {
	IncEmbeddingDegraded(provider string)
}

// Embedder is the infallible embedding capability used by the store and
// retriever.
type Embedder struct {
	provider   Provider
	dimensions int
	recorder   DegradationRecorder
}

// New wraps p. dimensions must be positive.
func New(p Provider, dimensions int, recorder DegradationRecorder) (*Embedder, error) {
	if p == nil {
		return nil, docerr.New(docerr.CodeConfigValidateInvalidValue, "embed: provider is required")
	}
	if dimensions <= 0 {
		return nil, docerr.Errorf(docerr.CodeConfigValidateInvalidValue, "embed: dimensions must be positive, got %d", dimensions)
	}
	return &Embedder{provider: p, dimensions: dimensions, recorder: recorder}, nil
}

// Dimensions returns the fixed output vector length.
func (e *Embedder) Dimensions() int { return e.dimensions }

// ProviderName returns the wrapped provider's name.
func (e *Embedder) ProviderName() string { return e.provider.Name() }

// Embed returns a vector of exactly Dimensions() values. It never fails.
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	v, err := e.provider.Embed(ctx, text)
	if err == nil && len(v) != e.dimensions {
		err = docerr.Errorf(docerr.CodeEmbedResponseInvalid,
			"embedding has %d dimensions, expected %d", len(v), e.dimensions)
	}
	if err != nil {
		slog.Warn("embedding failed, using zero vector",
			"provider", e.provider.Name(),
			"error", err,
		)
		if e.recorder != nil {
			e.recorder.IncEmbeddingDegraded(e.provider.Name())
		}
		return make([]float32, e.dimensions)
	}
	return v
}
