// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package embed

import (
	"context"

	"google.golang.org/genai"

	"github.com/docent-dev/docent/internal/provider/google"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

const DefaultGoogleModel = "gemini-embedding-001"

// GoogleProvider embeds text with the Gemini embedContent API.
type GoogleProvider struct {
	client     *genai.Client
	model      string
	dimensions int
}

func NewGoogleProvider(ctx context.Context, cfg google.Config, model string, dimensions int) (*GoogleProvider, error) {
	client, err := google.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultGoogleModel
	}
	return &GoogleProvider{client: client, model: model, dimensions: dimensions}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{}
	if p.dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(p.dimensions))
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, docerr.Wrap(err, docerr.CodeEmbedUpstreamFailure, "gemini embeddings", docerr.FieldProvider("google"))
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, docerr.New(docerr.CodeEmbedResponseInvalid, "gemini embeddings: empty response")
	}
	return resp.Embeddings[0].Values, nil
}
