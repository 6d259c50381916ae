// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/docent-dev/docent/internal/provider"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

// Config holds Google Gemini provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Provider implements provider.Provider using the Gemini API.
type Provider struct {
	client *genai.Client
	config Config
	health *provider.HealthTracker
}

// NewClient builds a Gemini API client; the embedder shares it.
func NewClient(ctx context.Context, cfg Config) (*genai.Client, error) {
	if cfg.APIKey == "" {
		return nil, docerr.New(docerr.CodeProviderRequestInvalid, "google: missing api_key in config", docerr.FieldProvider("google"))
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, docerr.Wrapf(err, docerr.CodeProviderUpstreamFailure, "google: creating client")
	}
	return client, nil
}

// New creates a Gemini provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Provider{
		client: client,
		config: cfg,
		health: provider.NewDefaultHealthTracker(),
	}, nil
}

func (p *Provider) Name() string { return "google" }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) RecordFailure() { p.health.RecordFailure() }
func (p *Provider) RecordSuccess() { p.health.RecordSuccess() }

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	config := buildConfig(req)

	eventCh := make(chan provider.ChatEvent, 100)
	go func() {
		defer close(eventCh)
		p.streamChat(ctx, req.Model, contents, config, eventCh)
	}()
	return eventCh, nil
}

func (p *Provider) Status(ctx context.Context) (provider.ProviderStatus, error) {
	snap := p.health.Snapshot()
	return provider.ProviderStatus{
		Available: p.Available(ctx),
		Provider:  "google",
		Message:   "ok",
		Health:    &snap,
	}, nil
}

func (p *Provider) Close() error { return nil }

func buildConfig(req provider.ChatRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.Options.Temperature != nil {
		cfg.Temperature = genai.Ptr(*req.Options.Temperature)
	}
	if req.Options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Options.MaxTokens)
	}

	system := req.SystemPrompt
	for _, m := range req.Messages {
		if m.Role == provider.MessageRoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		}
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	return cfg
}

// convertMessages maps roles onto Gemini's user/model pair. System
// messages travel in the config's SystemInstruction instead.
func convertMessages(msgs []provider.Message) ([]*genai.Content, error) {
	var result []*genai.Content
	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			result = append(result, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: msg.Content}}})
		case provider.MessageRoleAssistant:
			result = append(result, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: msg.Content}}})
		case provider.MessageRoleSystem:
			continue
		default:
			return nil, docerr.Errorf(docerr.CodeProviderRequestInvalid, "google: unsupported message role %q", msg.Role)
		}
	}
	return result, nil
}

func (p *Provider) streamChat(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	ch chan<- provider.ChatEvent,
) {
	for result, err := range p.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			p.health.RecordFailure()
			ch <- provider.ChatEvent{Type: provider.EventTypeError, Error: err.Error()}
			return
		}

		for _, candidate := range result.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" && !part.Thought {
					ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: part.Text}
				}
			}
		}

		if result.UsageMetadata != nil {
			ch <- provider.ChatEvent{
				Type: provider.EventTypeUsage,
				Usage: &provider.Usage{
					InputTokens:  int(result.UsageMetadata.PromptTokenCount),
					OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
				},
			}
		}
	}

	p.health.RecordSuccess()
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
}
