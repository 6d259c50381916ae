// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package provider

import (
	"context"

	"github.com/docent-dev/docent/pkg/health"
)

// Provider is the core interface for text-generation backends.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	Chat(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
	Status(ctx context.Context) (ProviderStatus, error)
	Close() error
}

// HealthReporter is implemented by providers that track their own health.
type HealthReporter interface {
	RecordFailure()
	RecordSuccess()
}

// ChatRequest represents a request to the LLM.
type ChatRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	Options      ChatOptions
}

// ChatOptions contains model configuration. A nil Temperature leaves the
// provider default in place.
type ChatOptions struct {
	Temperature *float32
	MaxTokens   int
}

// Message represents a conversation message.
type Message struct {
	Role    MessageRole
	Content string
}

// MessageRole defines the role of a message sender.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// ChatEvent is a streaming response event.
type ChatEvent struct {
	Type  EventType
	Text  string
	Usage *Usage
	Error string
}

// EventType defines the type of chat event.
type EventType string

const (
	EventTypeTextDelta EventType = "text_delta"
	EventTypeUsage     EventType = "usage"
	EventTypeDone      EventType = "done"
	EventTypeError     EventType = "error"
)

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ProviderStatus indicates provider health.
type ProviderStatus struct {
	Available bool            `json:"available"`
	Provider  string          `json:"provider"`
	Message   string          `json:"message"`
	Health    *health.Metrics `json:"health,omitempty"`
}
