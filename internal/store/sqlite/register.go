// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/docent-dev/docent/internal/store"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", open)
}

func open(cfg *store.StorageConfig) (store.EmbeddingStore, error) {
	path := cfg.Path
	if path == "" {
		path = "rag.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "creating database directory", docerr.FieldPath(dir))
		}
	}
	return NewEmbeddingStore(path, cfg.Dimensions())
}
