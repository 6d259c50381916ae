// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/docent-dev/docent/internal/provider"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

// Config holds OpenAI provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional; OpenAI-compatible gateways or a mock server
}

// Provider implements provider.Provider using the OpenAI Chat Completions API.
type Provider struct {
	client openaisdk.Client
	config Config
	health *provider.HealthTracker
}

// New creates a new OpenAI provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, docerr.New(docerr.CodeProviderRequestInvalid, "openai: missing api_key in config",
			docerr.FieldProvider("openai"))
	}

	return &Provider{
		client: openaisdk.NewClient(ClientOptions(cfg)...),
		config: cfg,
		health: provider.NewDefaultHealthTracker(),
	}, nil
}

// ClientOptions builds SDK request options; the embedder shares them.
func ClientOptions(cfg Config) []option.RequestOption {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return opts
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) RecordFailure() { p.health.RecordFailure() }
func (p *Provider) RecordSuccess() { p.health.RecordSuccess() }

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	eventCh := make(chan provider.ChatEvent, 100)

	go func() {
		defer close(eventCh)
		p.streamChat(ctx, params, eventCh)
	}()

	return eventCh, nil
}

func (p *Provider) Status(ctx context.Context) (provider.ProviderStatus, error) {
	snap := p.health.Snapshot()
	return provider.ProviderStatus{
		Available: p.Available(ctx),
		Provider:  "openai",
		Message:   "ok",
		Health:    &snap,
	}, nil
}

func (p *Provider) Close() error { return nil }

// buildParams converts a provider.ChatRequest into SDK params.
func buildParams(req provider.ChatRequest) (openaisdk.ChatCompletionNewParams, error) {
	msgs, err := convertMessages(req.Messages, req.SystemPrompt)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: msgs,
		StreamOptions: openaisdk.ChatCompletionStreamOptionsParam{
			IncludeUsage: param.NewOpt(true),
		},
	}

	if req.Options.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.Options.MaxTokens))
	}
	if req.Options.Temperature != nil {
		params.Temperature = param.NewOpt(float64(*req.Options.Temperature))
	}

	return params, nil
}

// convertMessages prepends the system prompt, if any, as a system message.
func convertMessages(msgs []provider.Message, systemPrompt string) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	var result []openaisdk.ChatCompletionMessageParamUnion

	if systemPrompt != "" {
		result = append(result, openaisdk.SystemMessage(systemPrompt))
	}

	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			result = append(result, openaisdk.UserMessage(msg.Content))
		case provider.MessageRoleAssistant:
			result = append(result, openaisdk.AssistantMessage(msg.Content))
		case provider.MessageRoleSystem:
			result = append(result, openaisdk.SystemMessage(msg.Content))
		default:
			return nil, docerr.Errorf(docerr.CodeProviderRequestInvalid, "openai: unsupported message role %q", msg.Role)
		}
	}

	return result, nil
}

func (p *Provider) streamChat(ctx context.Context, params openaisdk.ChatCompletionNewParams, ch chan<- provider.ChatEvent) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)

	for stream.Next() {
		chunk := stream.Current()

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: choice.Delta.Content}
			}
		}

		// Usage arrives on the final chunk when include_usage is set.
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			ch <- provider.ChatEvent{
				Type: provider.EventTypeUsage,
				Usage: &provider.Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				},
			}
		}
	}

	if err := stream.Err(); err != nil {
		p.health.RecordFailure()
		ch <- provider.ChatEvent{Type: provider.EventTypeError, Error: err.Error()}
		return
	}

	p.health.RecordSuccess()
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
}
