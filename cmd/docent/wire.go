// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"

	"github.com/docent-dev/docent/internal/answer"
	"github.com/docent-dev/docent/internal/config"
	"github.com/docent-dev/docent/internal/corpus"
	"github.com/docent-dev/docent/internal/embed"
	"github.com/docent-dev/docent/internal/guard"
	"github.com/docent-dev/docent/internal/ingest"
	"github.com/docent-dev/docent/internal/memory"
	"github.com/docent-dev/docent/internal/observability"
	"github.com/docent-dev/docent/internal/provider"
	anthropicprov "github.com/docent-dev/docent/internal/provider/anthropic"
	googleprov "github.com/docent-dev/docent/internal/provider/google"
	openaiprov "github.com/docent-dev/docent/internal/provider/openai"
	"github.com/docent-dev/docent/internal/retrieve"
	"github.com/docent-dev/docent/internal/server"
	"github.com/docent-dev/docent/internal/store"
	_ "github.com/docent-dev/docent/internal/store/postgres" // register postgres backend
	_ "github.com/docent-dev/docent/internal/store/sqlite"   // register sqlite backend
	docerr "github.com/docent-dev/docent/pkg/errors"
)

// Runtime holds every wired component and manages their lifecycle.
type Runtime struct {
	Config    *config.Config
	Metrics   *observability.Metrics
	Providers *provider.Registry
	Corpus    *corpus.Corpus
	Retriever *retrieve.Retriever
	Memory    *memory.Manager
	Composer  *answer.Composer
	Pipeline  *ingest.Pipeline
	Guard     *guard.Guard
}

// Wire opens the corpus and builds the retrieval, memory, answer and ingest
// components on top of it.
//
// A missing generation provider is not fatal: ingestion without extraction
// and empty-corpus answers still work, and generation reports the problem
// when it is first needed.
func Wire(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, docerr.Wrap(err, docerr.CodeCLISetupFailure, "creating data directory", docerr.FieldPath(cfg.DataDir))
	}

	metrics := observability.NewMetrics("docent")
	g, err := guard.New(guard.Config{
		Documents: guard.Mode(cfg.Guard.Documents),
		Questions: guard.Mode(cfg.Guard.Questions),
	}, metrics)
	if err != nil {
		return nil, err
	}

	reg := provider.NewRegistry()
	registerBuiltinProviders(ctx, cfg, reg)
	reg.SetLatencyObserver(metrics)
	opts := provider.ChatOptions{MaxTokens: cfg.Generation.MaxTokens}
	temp := float32(cfg.Generation.Temperature)
	opts.Temperature = &temp
	reg.SetOptions(opts)
	if err := reg.SetDefault(cfg.Generation.Default); err != nil {
		slog.Warn("default generation model unavailable", "model", cfg.Generation.Default, "error", err)
	}
	if err := reg.SetFailover(availableRefs(reg, cfg.Generation.Failover)); err != nil {
		slog.Warn("failover chain rejected", "error", err)
	}

	ep, err := newEmbeddingProvider(ctx, cfg)
	if err != nil {
		_ = reg.Close()
		return nil, err
	}
	emb, err := embed.New(ep, cfg.Embedding.Dimensions, metrics)
	if err != nil {
		_ = reg.Close()
		return nil, err
	}

	backend, err := store.Open(&store.StorageConfig{
		Backend:          cfg.Storage.Backend,
		Path:             cfg.Storage.Path,
		DSN:              cfg.Storage.DSN,
		VectorDimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		_ = reg.Close()
		return nil, docerr.With(err, docerr.Field("backend", cfg.Storage.Backend))
	}
	config.WarnInsecurePermissions(cfg.Storage.Path)
	docs := corpus.New(backend, emb, metrics)

	retriever := retrieve.New(docs, emb, metrics)
	mem := memory.NewManager(memory.Config{
		MaxTurns:     cfg.Memory.MaxTurns,
		IdleTTL:      cfg.Memory.IdleTTL,
		MaxDocuments: cfg.Memory.MaxDocuments,
	}, reg, metrics)
	composer := answer.New(retriever, mem, reg, metrics, answer.Options{
		TopK:              cfg.Retrieval.TopK,
		AttributionPrefix: cfg.Retrieval.AttributionPrefix,
	})
	composer.SetQuestionFilter(g)
	pipeline := ingest.NewPipeline(docs, ingest.NewTracker(), ingest.NewExtractor(reg))
	pipeline.SetSanitizer(g)

	slog.Debug("runtime wired",
		"storage", cfg.Storage.Backend,
		"embedding", emb.ProviderName(),
		"dimensions", emb.Dimensions(),
		"generation", cfg.Generation.Default,
		"guard_documents", cfg.Guard.Documents,
		"guard_questions", cfg.Guard.Questions)

	return &Runtime{
		Config:    cfg,
		Metrics:   metrics,
		Providers: reg,
		Corpus:    docs,
		Retriever: retriever,
		Memory:    mem,
		Composer:  composer,
		Pipeline:  pipeline,
		Guard:     g,
	}, nil
}

// Server builds the HTTP server over the runtime.
func (rt *Runtime) Server() (*server.Server, error) {
	svc, err := server.NewServices(rt.Composer, rt.Pipeline, rt.Pipeline.Tracker(), rt.Memory, rt.Providers)
	if err != nil {
		return nil, err
	}
	return server.New(server.Config{
		ListenAddr:  rt.Config.Server.Listen,
		CORSOrigins: rt.Config.Server.CORSOrigins,
		ChatLimit: server.RateLimitConfig{
			RequestsPerMinute: rt.Config.Server.ChatRequestsPerMinute,
			Burst:             rt.Config.Server.ChatBurst,
		},
		Metrics: rt.Metrics.Handler(),
		Version: version,
	}, svc)
}

// Close releases all resources held by the runtime.
func (rt *Runtime) Close() error {
	rt.Memory.Close()

	var errs []error
	for _, c := range []interface{ Close() error }{rt.Corpus, rt.Providers} {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// providerFactory builds a provider.Provider from a ProviderConfig.
type providerFactory func(context.Context, config.ProviderConfig) (provider.Provider, error)

// builtinProviderFactories maps provider names to their constructors.
// Declared as a variable so tests can inject fakes.
var builtinProviderFactories = map[string]providerFactory{
	"anthropic": func(_ context.Context, pc config.ProviderConfig) (provider.Provider, error) {
		return anthropicprov.New(anthropicprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"google": func(ctx context.Context, pc config.ProviderConfig) (provider.Provider, error) {
		return googleprov.New(ctx, googleprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"openai": func(_ context.Context, pc config.ProviderConfig) (provider.Provider, error) {
		return openaiprov.New(openaiprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
}

// registerBuiltinProviders registers every configured provider that has a
// key. Unknown names, missing keys and construction failures are logged
// and skipped.
func registerBuiltinProviders(ctx context.Context, cfg *config.Config, reg *provider.Registry) {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pc := cfg.Providers[name]
		if pc.APIKey == "" {
			slog.Debug("skipping provider with empty API key", "provider", name)
			continue
		}
		factory, ok := builtinProviderFactories[name]
		if !ok {
			slog.Warn("unknown provider in config, skipping", "provider", name)
			continue
		}
		p, err := factory(ctx, pc)
		if err != nil {
			slog.Warn("failed to create provider", "provider", name, "error", err)
			continue
		}
		reg.Register(name, p)
		slog.Debug("registered provider", "provider", name)
	}
}

// availableRefs keeps the failover refs whose provider is registered.
func availableRefs(reg *provider.Registry, refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if _, err := reg.Get(config.ProviderFromModel(ref)); err != nil {
			slog.Warn("dropping failover model without provider", "model", ref)
			continue
		}
		out = append(out, ref)
	}
	return out
}

func newEmbeddingProvider(ctx context.Context, cfg *config.Config) (embed.Provider, error) {
	pc := cfg.Providers[cfg.Embedding.Provider]
	switch cfg.Embedding.Provider {
	case "hash":
		return embed.NewHashProvider(cfg.Embedding.Dimensions), nil
	case "openai":
		return embed.NewOpenAIProvider(openaiprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint},
			cfg.Embedding.Model, cfg.Embedding.Dimensions)
	case "google":
		return embed.NewGoogleProvider(ctx, googleprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint},
			cfg.Embedding.Model, cfg.Embedding.Dimensions)
	default:
		return nil, docerr.Errorf(docerr.CodeEmbedProviderUnsupported, "unsupported embedding provider %q", cfg.Embedding.Provider)
	}
}
