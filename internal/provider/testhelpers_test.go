// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package provider_test

import (
	"context"
	"sync/atomic"

	"github.com/docent-dev/docent/internal/provider"
)

// mockProvider is a scripted provider.Provider for registry tests.
type mockProvider struct {
	name      string
	available bool
	reply     string
	streamErr string
	startErr  error
	calls     atomic.Int32
	failures  atomic.Int32
	lastReq   provider.ChatRequest
}

func newMockProvider(name string, available bool, reply string) *mockProvider {
	return &mockProvider{name: name, available: available, reply: reply}
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Available(context.Context) bool { return m.available }

func (m *mockProvider) Chat(_ context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	m.calls.Add(1)
	m.lastReq = req
	if m.startErr != nil {
		return nil, m.startErr
	}
	ch := make(chan provider.ChatEvent, 4)
	if m.streamErr != "" {
		ch <- provider.ChatEvent{Type: provider.EventTypeError, Error: m.streamErr}
	} else {
		ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: m.reply}
		ch <- provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: 10, OutputTokens: 5}}
		ch <- provider.ChatEvent{Type: provider.EventTypeDone}
	}
	close(ch)
	return ch, nil
}

func (m *mockProvider) Status(context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{Available: m.available, Provider: m.name, Message: "ok"}, nil
}

func (m *mockProvider) Close() error { return nil }

func (m *mockProvider) RecordFailure() { m.failures.Add(1) }
func (m *mockProvider) RecordSuccess() {}
