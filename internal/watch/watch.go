// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

// Package watch ingests document bundles dropped into an inbox directory.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/docent-dev/docent/internal/ingest"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

// DefaultSettle is how long a file must stay unchanged before it is read.
const DefaultSettle = 500 * time.Millisecond

// Ingester consumes loaded bundles.
type Ingester interface {
	IngestBundle(ctx context.Context, b *ingest.Bundle, opts ingest.Options) (int, error)
}

// Config configures a Watcher.
type Config struct {
	Dir     string
	Options ingest.Options
	// Settle defaults to DefaultSettle.
	Settle time.Duration
}

// Watcher ingests every bundle already in Dir and then each bundle created
// or rewritten there. Files are read once writes to them have settled.
type Watcher struct {
	cfg Config
	ing Ingester
	fs  *fsnotify.Watcher
	now func() time.Time
}

func New(cfg Config, ing Ingester) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, docerr.New(docerr.CodeWatchSetupFailure, "watch directory is required")
	}
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, docerr.Wrap(err, docerr.CodeWatchSetupFailure, "reading watch directory", docerr.FieldPath(cfg.Dir))
	}
	if !info.IsDir() {
		return nil, docerr.New(docerr.CodeWatchSetupFailure, "watch path is not a directory", docerr.FieldPath(cfg.Dir))
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, docerr.Wrap(err, docerr.CodeWatchSetupFailure, "creating file watcher")
	}
	if err := fw.Add(cfg.Dir); err != nil {
		_ = fw.Close()
		return nil, docerr.Wrap(err, docerr.CodeWatchSetupFailure, "watching directory", docerr.FieldPath(cfg.Dir))
	}
	return &Watcher{cfg: cfg, ing: ing, fs: fw, now: time.Now}, nil
}

// Run blocks until ctx is done or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	w.ingestExisting(ctx)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.cfg.Settle / 2)
	defer ticker.Stop()

	slog.Info("watching for bundles", "path", w.cfg.Dir)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !ingest.IsBundleFile(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				pending[ev.Name] = w.now()
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				delete(pending, ev.Name)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Warn("file watcher error", "path", w.cfg.Dir, "error", err)

		case <-ticker.C:
			cutoff := w.now().Add(-w.cfg.Settle)
			var ready []string
			for path, last := range pending {
				if last.Before(cutoff) {
					ready = append(ready, path)
				}
			}
			sort.Strings(ready)
			for _, path := range ready {
				delete(pending, path)
				w.ingestFile(ctx, path)
			}
		}
	}
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) ingestExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		slog.Warn("listing watch directory", "path", w.cfg.Dir, "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !ingest.IsBundleFile(e.Name()) {
			continue
		}
		w.ingestFile(ctx, filepath.Join(w.cfg.Dir, e.Name()))
	}
}

func (w *Watcher) ingestFile(ctx context.Context, path string) {
	b, err := ingest.LoadBundle(path)
	if err != nil {
		slog.Warn("skipping bundle", "path", path, "error", err)
		return
	}
	n, err := w.ing.IngestBundle(ctx, b, w.cfg.Options)
	if err != nil {
		slog.Warn("bundle ingestion failed", "path", path, "doc_id", b.DocID, "error", err)
		return
	}
	slog.Info("bundle ingested", "path", path, "doc_id", b.DocID, "inserted", n)
}
