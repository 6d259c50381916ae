// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package google_test

import (
	"context"
	"testing"

	"github.com/docent-dev/docent/internal/provider"
	"github.com/docent-dev/docent/internal/provider/google"
	docerr "github.com/docent-dev/docent/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ provider.Provider = (*google.Provider)(nil)

func TestGoogleProvider_MissingAPIKey(t *testing.T) {
	_, err := google.New(context.Background(), google.Config{})
	require.Error(t, err)
	assert.True(t, docerr.HasCode(err, docerr.CodeProviderRequestInvalid))
}

func TestGoogleProvider_NameAndStatus(t *testing.T) {
	p, err := google.New(context.Background(), google.Config{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())

	p.RecordFailure()
	st, err := p.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Available)
	require.NotNil(t, st.Health)
	assert.Equal(t, int64(1), st.Health.FailureCount)
}

func TestConvertMessages(t *testing.T) {
	contents, err := google.ConvertMessages([]provider.Message{
		{Role: provider.MessageRoleSystem, Content: "rules"},
		{Role: provider.MessageRoleUser, Content: "q"},
		{Role: provider.MessageRoleAssistant, Content: "a"},
	})
	require.NoError(t, err)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)

	_, err = google.ConvertMessages([]provider.Message{{Role: "tool"}})
	assert.True(t, docerr.IsInvalidInput(err))
}

func TestBuildConfig(t *testing.T) {
	temp := float32(0.5)
	cfg := google.BuildConfig(provider.ChatRequest{
		SystemPrompt: "base",
		Messages:     []provider.Message{{Role: provider.MessageRoleSystem, Content: "extra"}},
		Options:      provider.ChatOptions{Temperature: &temp, MaxTokens: 100},
	})
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "base\n\nextra", cfg.SystemInstruction.Parts[0].Text)
	assert.Equal(t, int32(100), cfg.MaxOutputTokens)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.5, *cfg.Temperature, 0.0001)
}
