// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package embed

import (
	"context"

	openaisdk "github.com/openai/openai-go"

	"github.com/docent-dev/docent/internal/provider/openai"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

// DefaultOpenAIModel produces 1536-dimensional vectors by default.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIProvider embeds text with the OpenAI embeddings endpoint.
type OpenAIProvider struct {
	client     openaisdk.Client
	model      string
	dimensions int
}

func NewOpenAIProvider(cfg openai.Config, model string, dimensions int) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, docerr.New(docerr.CodeProviderRequestInvalid, "openai: missing api_key for embeddings",
			docerr.FieldProvider("openai"))
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIProvider{
		client:     openaisdk.NewClient(openai.ClientOptions(cfg)...),
		model:      model,
		dimensions: dimensions,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfString: openaisdk.String(text)},
		Model: openaisdk.EmbeddingModel(p.model),
	}
	// ada-002 rejects the dimensions parameter.
	if p.dimensions > 0 && p.model != "text-embedding-ada-002" {
		params.Dimensions = openaisdk.Int(int64(p.dimensions))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, docerr.Wrap(err, docerr.CodeEmbedUpstreamFailure, "openai embeddings", docerr.FieldProvider("openai"))
	}
	if len(resp.Data) == 0 {
		return nil, docerr.New(docerr.CodeEmbedResponseInvalid, "openai embeddings: empty response")
	}

	raw := resp.Data[0].Embedding
	out := make([]float32, len(raw))
	for i, x := range raw {
		out[i] = float32(x)
	}
	return out, nil
}
