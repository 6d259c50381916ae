// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docent-dev/docent/internal/answer"
	"github.com/docent-dev/docent/internal/corpus"
	"github.com/docent-dev/docent/internal/embed"
	"github.com/docent-dev/docent/internal/ingest"
	"github.com/docent-dev/docent/internal/memory"
	"github.com/docent-dev/docent/internal/observability"
	"github.com/docent-dev/docent/internal/provider"
	"github.com/docent-dev/docent/internal/retrieve"
	"github.com/docent-dev/docent/internal/server"
	"github.com/docent-dev/docent/internal/store"
)

// echoGenerator answers with the first excerpt line of the prompt, or a
// fixed reply for compaction prompts.
type echoGenerator struct {
	calls atomic.Int32
	err   error
}

func (g *echoGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.calls.Add(1)
	if g.err != nil {
		return "", g.err
	}
	for _, line := range strings.Split(prompt, "\n") {
		if strings.HasPrefix(line, "- (page) ") {
			return strings.TrimPrefix(line, "- (page) "), nil
		}
	}
	return "summary of earlier turns", nil
}

type stack struct {
	gen      *echoGenerator
	pipeline *ingest.Pipeline
	memory   *memory.Manager
	metrics  *observability.Metrics
	handler  http.Handler
}

type staticStatuses []provider.ProviderStatus

func (s staticStatuses) Statuses(context.Context) []provider.ProviderStatus { return s }

func newStack(t *testing.T, cfg server.Config) *stack {
	t.Helper()

	metrics := observability.NewMetrics("docent")
	emb, err := embed.New(embed.NewHashProvider(64), 64, metrics)
	require.NoError(t, err)
	docs := corpus.New(store.NewMemoryStore(64), emb, metrics)
	t.Cleanup(func() { _ = docs.Close() })

	gen := &echoGenerator{}
	mem := memory.NewManager(memory.Config{}, gen, metrics)
	t.Cleanup(mem.Close)

	composer := answer.New(retrieve.New(docs, emb, metrics), mem, gen, metrics, answer.Options{})
	pipeline := ingest.NewPipeline(docs, nil, nil)

	svc, err := server.NewServices(composer, pipeline, pipeline.Tracker(), mem,
		staticStatuses{{Provider: "openai", Available: true, Message: "ok"}})
	require.NoError(t, err)

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	cfg.Metrics = metrics.Handler()
	srv, err := server.New(cfg, svc)
	require.NoError(t, err)

	return &stack{gen: gen, pipeline: pipeline, memory: mem, metrics: metrics, handler: srv.Handler()}
}

func (s *stack) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:50000"
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type chatBody struct {
	Answer    string            `json:"answer"`
	Source    *string           `json:"source"`
	Citations []answer.Citation `json:"citations"`
}

func TestNew_Validation(t *testing.T) {
	_, err := server.New(server.Config{}, &server.Services{})
	require.Error(t, err)

	_, err = server.New(server.Config{ListenAddr: ":0"}, nil)
	require.Error(t, err)

	_, err = server.NewServices(nil, nil, nil, nil, nil)
	require.Error(t, err)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newStack(t, server.Config{})

	w := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, stripSchema(t, w.Body.Bytes()))

	w = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestOpenAPIDocument(t *testing.T) {
	s := newStack(t, server.Config{})
	w := s.do(t, http.MethodGet, "/openapi.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	for _, path := range []string{"/api/v1/chat", "/api/v1/documents/{docId}/ingest", "/api/v1/documents/{docId}/conversation"} {
		assert.Contains(t, w.Body.String(), path)
	}
}

func TestChat_EmptyCorpusReturnsNullSource(t *testing.T) {
	s := newStack(t, server.Config{})

	w := s.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"doc_id": "unknown", "question": "anything?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"source":null`)

	body := decode[chatBody](t, w)
	assert.Equal(t, answer.DefaultNotFoundText, body.Answer)
	assert.Nil(t, body.Source)
	assert.Zero(t, s.gen.calls.Load())
}

func TestIngestThenChat(t *testing.T) {
	s := newStack(t, server.Config{})

	w := s.do(t, http.MethodPost, "/api/v1/documents/D1/ingest", map[string]any{
		"pages":   []string{"환급 대상자는 관악구 거주자입니다", "신청 기한은 2025-01-31까지입니다"},
		"actions": []map[string]string{{"action": "환급 신청", "when": "2025-01-31"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 3, decode[struct {
		Inserted int `json:"inserted"`
	}](t, w).Inserted)

	w = s.do(t, http.MethodGet, "/api/v1/documents/D1/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ingest.StageDone, decode[ingest.Progress](t, w).Step)

	w = s.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"doc_id": "D1", "question": "신청 기한이 언제인가요?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[chatBody](t, w)
	require.NotNil(t, body.Source)
	assert.NotEmpty(t, body.Citations)
	assert.Contains(t, *body.Source, body.Answer)

	w = s.do(t, http.MethodGet, "/api/v1/documents/D1/conversation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	conv := decode[struct {
		History []memory.Turn `json:"history"`
	}](t, w)
	require.Len(t, conv.History, 1)
	assert.Equal(t, "신청 기한이 언제인가요?", conv.History[0].Question)

	w = s.do(t, http.MethodDelete, "/api/v1/documents/D1/conversation", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/documents/D1/conversation", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodDelete, "/api/v1/documents/D1/conversation", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChat_ErrorMapping(t *testing.T) {
	s := newStack(t, server.Config{})
	_, err := s.pipeline.Ingest(context.Background(), "doc", nil, []string{"some page"})
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"doc_id": "doc", "question": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"doc_id": "doc"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "schema validation rejects a missing question")

	s.gen.err = stderrors.New("provider offline")
	w = s.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"doc_id": "doc", "question": "what?"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	_, ok := s.memory.Snapshot("doc")
	assert.False(t, ok, "failed generation leaves no conversation behind")
}

func TestProgress_UnknownDocumentIsPending(t *testing.T) {
	s := newStack(t, server.Config{})
	w := s.do(t, http.MethodGet, "/api/v1/documents/never-seen/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ingest.StagePending, decode[ingest.Progress](t, w).Step)
}

func TestProviders(t *testing.T) {
	s := newStack(t, server.Config{})
	w := s.do(t, http.MethodGet, "/api/v1/providers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Providers []provider.ProviderStatus `json:"providers"`
	}](t, w)
	require.Len(t, body.Providers, 1)
	assert.Equal(t, "openai", body.Providers[0].Provider)
}

func TestChat_RateLimited(t *testing.T) {
	s := newStack(t, server.Config{ChatLimit: server.RateLimitConfig{RequestsPerMinute: 1, Burst: 2}})
	req := map[string]string{"doc_id": "x", "question": "q"}

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/chat", req).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/chat", req).Code)

	w := s.do(t, http.MethodPost, "/api/v1/chat", req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil).Code, "only chat is limited")
}

// stripSchema drops huma's $schema link so bodies compare cleanly.
func stripSchema(t *testing.T, raw []byte) string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	delete(m, "$schema")
	out, err := json.Marshal(m)
	require.NoError(t, err)
	return string(out)
}
