// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/docent-dev/docent/internal/ingest"
	"github.com/docent-dev/docent/internal/watch"
	docerr "github.com/docent-dev/docent/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectingIngester struct {
	mu   sync.Mutex
	docs []string
}

func (c *collectingIngester) IngestBundle(_ context.Context, b *ingest.Bundle, _ ingest.Options) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, b.DocID)
	return len(b.Pages), nil
}

func (c *collectingIngester) Docs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.docs...)
}

func writeBundle(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestNew_Validation(t *testing.T) {
	_, err := watch.New(watch.Config{}, &collectingIngester{})
	assert.True(t, docerr.HasCode(err, docerr.CodeWatchSetupFailure))

	_, err = watch.New(watch.Config{Dir: filepath.Join(t.TempDir(), "missing")}, &collectingIngester{})
	assert.True(t, docerr.HasCode(err, docerr.CodeWatchSetupFailure))

	file := filepath.Join(t.TempDir(), "file.yaml")
	writeBundle(t, file, "pages: []\n")
	_, err = watch.New(watch.Config{Dir: file}, &collectingIngester{})
	assert.True(t, docerr.HasCode(err, docerr.CodeWatchSetupFailure))
}

func TestWatcher_IngestsExistingAndNewBundles(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, filepath.Join(dir, "existing.yaml"), "pages:\n  - one\n")
	writeBundle(t, filepath.Join(dir, "notes.txt"), "ignored")

	ing := &collectingIngester{}
	w, err := watch.New(watch.Config{Dir: dir, Settle: 20 * time.Millisecond}, ing)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(ing.Docs()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"existing"}, ing.Docs())

	writeBundle(t, filepath.Join(dir, "fresh.json"), `{"doc_id": "F-1", "pages": ["a"]}`)
	writeBundle(t, filepath.Join(dir, "skip.md"), "# not a bundle")

	require.Eventually(t, func() bool { return len(ing.Docs()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"existing", "F-1"}, ing.Docs())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcher_SkipsMalformedBundles(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, filepath.Join(dir, "broken.json"), `{"doc_id": `)
	writeBundle(t, filepath.Join(dir, "good.yml"), "doc_id: G\npages: [x]\n")

	ing := &collectingIngester{}
	w, err := watch.New(watch.Config{Dir: dir, Settle: 20 * time.Millisecond}, ing)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(ing.Docs()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"G"}, ing.Docs())
}
