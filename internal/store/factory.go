// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package store

import (
	"sort"
	"sync"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

// DefaultVectorDimensions matches OpenAI text-embedding-3-small / ada-002.
const DefaultVectorDimensions = 1536

// StorageConfig controls which backend the store factory uses.
type StorageConfig struct {
	Backend          string // "sqlite" (default), "postgres" or "memory".
	Path             string // sqlite database file.
	DSN              string // postgres connection string.
	VectorDimensions int    // 0 uses DefaultVectorDimensions.
}

// Dimensions returns the effective vector dimensions.
func (c *StorageConfig) Dimensions() int {
	if c.VectorDimensions > 0 {
		return c.VectorDimensions
	}
	return DefaultVectorDimensions
}

// BackendFactory opens an EmbeddingStore from configuration.
type BackendFactory func(cfg *StorageConfig) (EmbeddingStore, error)

var (
	factories   = map[string]BackendFactory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, factory BackendFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// Open creates the configured EmbeddingStore.
func Open(cfg *StorageConfig) (EmbeddingStore, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, docerr.Errorf(docerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	return factory(cfg)
}

func init() {
	RegisterBackend("memory", func(cfg *StorageConfig) (EmbeddingStore, error) {
		return NewMemoryStore(cfg.Dimensions()), nil
	})
}
