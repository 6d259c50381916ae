// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/docent-dev/docent/internal/config"
	"github.com/docent-dev/docent/internal/provider"
	"github.com/docent-dev/docent/internal/secrets"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

// fakeProvider replies with a fixed text to every chat request.
type fakeProvider struct {
	name  string
	reply string
	calls atomic.Int32
}

func (f *fakeProvider) Name() string                   { return f.name }
func (f *fakeProvider) Available(context.Context) bool { return true }

func (f *fakeProvider) Chat(context.Context, provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	f.calls.Add(1)
	ch := make(chan provider.ChatEvent, 2)
	ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: f.reply}
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
	close(ch)
	return ch, nil
}

func (f *fakeProvider) Status(context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{Available: true, Provider: f.name, Message: "fake"}, nil
}

func (f *fakeProvider) Close() error { return nil }

// useFakeProvider makes every configured provider a fakeProvider replying
// with reply, restoring the real factories when the test ends.
func useFakeProvider(t *testing.T, reply string) *fakeProvider {
	t.Helper()
	fake := &fakeProvider{name: "openai", reply: reply}
	orig := builtinProviderFactories
	builtinProviderFactories = map[string]providerFactory{
		"openai": func(context.Context, config.ProviderConfig) (provider.Provider, error) { return fake, nil },
	}
	t.Cleanup(func() { builtinProviderFactories = orig })
	return fake
}

// memSecretStore is an in-memory secrets.Store.
type memSecretStore struct {
	data map[string]string
}

func (m *memSecretStore) Set(_, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *memSecretStore) Get(_, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", docerr.Errorf(docerr.CodeSecretNotFound, "secret %q not found", key)
	}
	return v, nil
}

func (m *memSecretStore) Delete(_, key string) error {
	if _, ok := m.data[key]; !ok {
		return docerr.Errorf(docerr.CodeSecretNotFound, "secret %q not found", key)
	}
	delete(m.data, key)
	return nil
}

func (m *memSecretStore) List(string) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// useSecretStore swaps secretStoreFactory for an in-memory store.
func useSecretStore(t *testing.T) *memSecretStore {
	t.Helper()
	store := &memSecretStore{data: map[string]string{}}
	orig := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return store }
	t.Cleanup(func() { secretStoreFactory = orig })
	return store
}

// writeTestConfig points HOME at a temp dir and writes a config using a
// sqlite corpus there and the offline hash embedder.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("OPENAI_API_KEY", "")

	body := fmt.Sprintf(`data_dir: %q
storage:
  backend: sqlite
  path: %q
embedding:
  provider: hash
  dimensions: 64
generation:
  default: "openai/gpt-4o-mini"
providers:
  openai:
    api_key: "test-key"
`, filepath.Join(dir, "data"), filepath.Join(dir, "rag.db"))
	path := filepath.Join(dir, "docent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body+extra), 0o600))
	return path
}

// newTestViper loads path the way the root command does.
func newTestViper(t *testing.T, path string) *viper.Viper {
	t.Helper()
	v := config.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	return v
}

// runCLI executes a fresh root command and returns its stdout.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}
