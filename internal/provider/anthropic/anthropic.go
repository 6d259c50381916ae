// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package anthropic

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/docent-dev/docent/internal/provider"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

const defaultMaxTokens = 2048

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Provider implements provider.Provider using the Anthropic Messages API.
type Provider struct {
	client anthropicsdk.Client
	config Config
	health *provider.HealthTracker
}

// New creates a new Anthropic provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, docerr.New(docerr.CodeProviderRequestInvalid, "anthropic: missing api_key in config",
			docerr.FieldProvider("anthropic"))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		client: anthropicsdk.NewClient(opts...),
		config: cfg,
		health: provider.NewDefaultHealthTracker(),
	}, nil
}

func (p *Provider) Name() string { return "anthropic" }

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
		Provider:  "anthropic",
		Message:   "ok",
		Health:    &snap,
	}, nil
}

func (p *Provider) Close() error { return nil }

func buildParams(req provider.ChatRequest) (anthropicsdk.MessageNewParams, error) {
	msgs, system, err := convertMessages(req.Messages)
	if err != nil {
		return anthropicsdk.MessageNewParams{}, err
	}

	maxTokens := int64(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}

	// The Messages API takes system text as a separate parameter.
	if req.SystemPrompt != "" {
		system = append([]string{req.SystemPrompt}, system...)
	}
	for _, s := range system {
		params.System = append(params.System, anthropicsdk.TextBlockParam{Text: s})
	}

	if req.Options.Temperature != nil {
		params.Temperature = anthropicsdk.Float(float64(*req.Options.Temperature))
	}

	return params, nil
}

// convertMessages splits out system messages, which the Messages API does
// not accept inline.
func convertMessages(msgs []provider.Message) ([]anthropicsdk.MessageParam, []string, error) {
	var (
		result []anthropicsdk.MessageParam
		system []string
	)
	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			result = append(result, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content)))
		case provider.MessageRoleAssistant:
			result = append(result, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content)))
		case provider.MessageRoleSystem:
			system = append(system, msg.Content)
		default:
			return nil, nil, docerr.Errorf(docerr.CodeProviderRequestInvalid, "anthropic: unsupported message role %q", msg.Role)
		}
	}
	return result, system, nil
}

func (p *Provider) streamChat(ctx context.Context, params anthropicsdk.MessageNewParams, ch chan<- provider.ChatEvent) {
	stream := p.client.Messages.NewStreaming(ctx, params)

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type == "text_delta" {
				ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: event.Delta.Text}
			}
		case "message_start":
			if u := event.Message.Usage; u.InputTokens > 0 || u.OutputTokens > 0 {
				ch <- provider.ChatEvent{
					Type:  provider.EventTypeUsage,
					Usage: &provider.Usage{InputTokens: int(u.InputTokens), OutputTokens: int(u.OutputTokens)},
				}
			}
		case "message_delta":
			ch <- provider.ChatEvent{
				Type:  provider.EventTypeUsage,
				Usage: &provider.Usage{OutputTokens: int(event.Usage.OutputTokens)},
			}
		case "message_stop":
			p.health.RecordSuccess()
			ch <- provider.ChatEvent{Type: provider.EventTypeDone}
			return
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
