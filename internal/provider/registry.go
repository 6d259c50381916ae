// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package provider

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

// LatencyObserver receives the duration of each successful generation.
type LatencyObserver interface {
	ObserveGenerateLatency(d time.Duration)
}

// Registry manages provider registration, lookup and routing with failover.
// It is the Generator used by the answer composer and memory compaction.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider

	defaultRef string   // "provider/model" format
	failover   []string // ordered list of "provider/model" refs
	options    ChatOptions
	observer   LatencyObserver
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider to the registry.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, docerr.New(docerr.CodeProviderNotFound, "provider not found: "+name, docerr.FieldProvider(name))
	}
	return p, nil
}

// SetDefault sets the primary "provider/model" reference.
func (r *Registry) SetDefault(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRefLocked(ref); err != nil {
		return err
	}
	r.defaultRef = ref
	return nil
}

// SetFailover sets the ordered failover chain of "provider/model" refs.
func (r *Registry) SetFailover(chain []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range chain {
		if err := r.checkRefLocked(ref); err != nil {
			return err
		}
	}
	r.failover = append([]string(nil), chain...)
	return nil
}

// SetOptions sets the chat options applied to every Generate call.
func (r *Registry) SetOptions(opts ChatOptions) {
	r.mu.Lock()
	r.options = opts
	r.mu.Unlock()
}

// SetLatencyObserver installs a latency sink, typically the metrics set.
func (r *Registry) SetLatencyObserver(o LatencyObserver) {
	r.mu.Lock()
	r.observer = o
	r.mu.Unlock()
}

// MaxAttempts returns 1 (primary) + len(failover chain).
func (r *Registry) MaxAttempts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return 1 + len(r.failover)
}

// Route selects the first available provider from the default ref followed
// by the failover chain, skipping providers named in exclude.
func (r *Registry) Route(ctx context.Context, exclude []string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultRef == "" {
		return nil, "", docerr.New(docerr.CodeProviderNoDefault, "no default provider configured")
	}

	for _, ref := range append([]string{r.defaultRef}, r.failover...) {
		name, _ := parseRef(ref)
		if slices.Contains(exclude, name) {
			continue
		}
		p, model, err := r.tryRef(ctx, ref)
		if err == nil {
			return p, model, nil
		}
	}

	return nil, "", docerr.New(docerr.CodeProviderAllUnavailable, "all providers unavailable: no healthy provider found")
}

// Generate sends prompt as a single user message and returns the full
// completion text. On provider failure the next candidate in the failover
// chain is tried; when every candidate fails the last error is returned
// as an upstream failure.
func (r *Registry) Generate(ctx context.Context, prompt string) (string, error) {
	r.mu.RLock()
	opts := r.options
	observer := r.observer
	r.mu.RUnlock()

	var (
		tried   []string
		lastErr error
	)
	for attempt := 0; attempt < r.MaxAttempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return "", docerr.Wrap(err, docerr.CodeProviderUpstreamFailure, "generation cancelled")
		}

		p, model, err := r.Route(ctx, tried)
		if err != nil {
			if lastErr != nil {
				break
			}
			return "", err
		}
		tried = append(tried, p.Name())

		start := time.Now()
		text, err := generateOnce(ctx, p, ChatRequest{
			Model:    model,
			Messages: []Message{{Role: MessageRoleUser, Content: prompt}},
			Options:  opts,
		})
		if err == nil {
			if observer != nil {
				observer.ObserveGenerateLatency(time.Since(start))
			}
			return text, nil
		}

		lastErr = err
		slog.Warn("generation failed, trying next provider",
			"provider", p.Name(),
			"model", model,
			"error", err,
		)
	}

	return "", docerr.Wrap(lastErr, docerr.CodeProviderUpstreamFailure, "all generation attempts failed")
}

func generateOnce(ctx context.Context, p Provider, req ChatRequest) (string, error) {
	events, err := p.Chat(ctx, req)
	if err != nil {
		if hr, ok := p.(HealthReporter); ok {
			hr.RecordFailure()
		}
		return "", docerr.Wrap(err, docerr.CodeProviderUpstreamFailure, "starting chat", docerr.FieldProvider(p.Name()))
	}
	text, _, err := Collect(ctx, events)
	if err != nil {
		return "", docerr.With(err, docerr.FieldProvider(p.Name()))
	}
	return text, nil
}

// Statuses reports every registered provider's status, sorted by name.
func (r *Registry) Statuses(ctx context.Context) []ProviderStatus {
	r.mu.RLock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	out := make([]ProviderStatus, 0, len(names))
	for _, name := range names {
		p, err := r.Get(name)
		if err != nil {
			continue
		}
		st, err := p.Status(ctx)
		if err != nil {
			st = ProviderStatus{Provider: name, Message: err.Error()}
		}
		out = append(out, st)
	}
	return out
}

// Close shuts down all registered providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return docerr.Join(errs...)
	}
	return nil
}

// Caller must hold r.mu.
func (r *Registry) checkRefLocked(ref string) error {
	name, model := parseRef(ref)
	if model == "" {
		return docerr.Errorf(docerr.CodeProviderInvalidModelRef, "model ref %q must use provider/model format", ref)
	}
	if _, ok := r.providers[name]; !ok {
		return docerr.New(docerr.CodeProviderNotFound, "provider not registered: "+name, docerr.FieldProvider(name))
	}
	return nil
}

// tryRef looks up the provider for ref and checks availability.
// Caller must hold r.mu (at least RLock).
func (r *Registry) tryRef(ctx context.Context, ref string) (Provider, string, error) {
	name, model := parseRef(ref)

	p, ok := r.providers[name]
	if !ok {
		return nil, "", docerr.New(docerr.CodeProviderNotFound, "provider not found: "+name, docerr.FieldProvider(name))
	}
	if !p.Available(ctx) {
		return nil, "", docerr.New(docerr.CodeProviderUpstreamFailure, "provider unavailable: "+name, docerr.FieldProvider(name))
	}
	return p, model, nil
}

// parseRef splits a "provider/model" reference on the first "/".
func parseRef(ref string) (providerName, model string) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}
