// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package server

import (
	"context"

	"github.com/docent-dev/docent/internal/answer"
	"github.com/docent-dev/docent/internal/ingest"
	"github.com/docent-dev/docent/internal/memory"
	"github.com/docent-dev/docent/internal/provider"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

// Answerer answers a question about one document.
type Answerer interface {
	Answer(ctx context.Context, docID, query string) (*answer.Response, error)
}

// Ingester stores a document bundle.
type Ingester interface {
	IngestBundle(ctx context.Context, b *ingest.Bundle, opts ingest.Options) (int, error)
}

// ProgressSource reports ingestion progress.
type ProgressSource interface {
	Get(docID string) (ingest.Progress, error)
}

// Conversations exposes per-document conversation state.
type Conversations interface {
	Snapshot(docID string) (memory.State, bool)
	Evict(ctx context.Context, docID string) (bool, error)
}

// ProviderStatuses lists generator provider health.
type ProviderStatuses interface {
	Statuses(ctx context.Context) []provider.ProviderStatus
}

// Services holds dependencies injected into route handlers.
// Use NewServices to ensure all required services are provided.
type Services struct {
	answers       Answerer
	ingester      Ingester
	progress      ProgressSource
	conversations Conversations
	providers     ProviderStatuses // optional
}

// NewServices validates and bundles the route dependencies. providers may
// be nil, in which case the provider status route reports an empty list.
func NewServices(answers Answerer, ing Ingester, progress ProgressSource, conv Conversations, providers ProviderStatuses) (*Services, error) {
	if answers == nil {
		return nil, docerr.New(docerr.CodeServerConfigInvalid, "answer service is required")
	}
	if ing == nil {
		return nil, docerr.New(docerr.CodeServerConfigInvalid, "ingest service is required")
	}
	if progress == nil {
		return nil, docerr.New(docerr.CodeServerConfigInvalid, "progress service is required")
	}
	if conv == nil {
		return nil, docerr.New(docerr.CodeServerConfigInvalid, "conversation service is required")
	}
	return &Services{
		answers:       answers,
		ingester:      ing,
		progress:      progress,
		conversations: conv,
		providers:     providers,
	}, nil
}
