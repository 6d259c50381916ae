// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

// Package ingest turns a document's cleaned pages and action records into
// embedded fragments and tracks each document's ingestion progress.
package ingest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/docent-dev/docent/internal/store"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

// Inserter stores one fragment and reports how many were stored (0 or 1).
type Inserter interface {
	Insert(ctx context.Context, docID string, kind store.RecordKind, pageNum *int, text string, metadata map[string]any) (int, error)
}

// Sanitizer screens fragment text before it is stored. It may rewrite the
// text or reject it with an error.
type Sanitizer interface {
	Document(docID, text string) (string, error)
}

// Options controls IngestBundle.
type Options struct {
	// Extract asks the Generator for actions when the bundle has none, and
	// for the document's entities.
	Extract bool
}

// Pipeline feeds documents into the corpus.
type Pipeline struct {
	corpus    Inserter
	tracker   *Tracker
	extractor *Extractor
	sanitizer Sanitizer
}

// NewPipeline creates a Pipeline. A nil tracker gets a fresh one; extractor
// may be nil, which disables Options.Extract.
func NewPipeline(corpus Inserter, tracker *Tracker, extractor *Extractor) *Pipeline {
	if tracker == nil {
		tracker = NewTracker()
	}
	return &Pipeline{corpus: corpus, tracker: tracker, extractor: extractor}
}

// SetSanitizer screens every page and action field before storage.
func (p *Pipeline) SetSanitizer(s Sanitizer) { p.sanitizer = s }

// Tracker returns the pipeline's progress tracker.
func (p *Pipeline) Tracker() *Tracker { return p.tracker }

// Ingest stores actions, then pages, for docID and returns the number of
// fragments stored. Blank pages and empty actions count as zero. Pages are
// numbered from 1 in the given order.
func (p *Pipeline) Ingest(ctx context.Context, docID string, actions []ActionRecord, pages []string) (int, error) {
	if strings.TrimSpace(docID) == "" {
		return 0, docerr.New(docerr.CodeIngestInvalidInput, "doc id is required")
	}
	p.tracker.begin(docID)
	return p.run(ctx, docID, actions, pages)
}

// IngestBundle ingests a loaded bundle, optionally extracting actions and
// entities first.
func (p *Pipeline) IngestBundle(ctx context.Context, b *Bundle, opts Options) (int, error) {
	if b == nil || strings.TrimSpace(b.DocID) == "" {
		return 0, docerr.New(docerr.CodeIngestInvalidInput, "bundle has no doc id")
	}
	p.tracker.begin(b.DocID)

	actions := b.Actions
	if opts.Extract && p.extractor != nil {
		p.tracker.advance(b.DocID, StageExtracting)
		if len(actions) == 0 {
			actions = p.extractor.Actions(ctx, b.DocID, b.Pages)
		}
		ents := p.extractor.Entities(ctx, b.DocID, b.Pages)
		p.tracker.update(b.DocID, func(pr *Progress) { pr.Entities = ents })
	}

	return p.run(ctx, b.DocID, actions, b.Pages)
}

func (p *Pipeline) run(ctx context.Context, docID string, actions []ActionRecord, pages []string) (int, error) {
	p.tracker.advance(docID, StageEmbedding)

	inserted := 0
	fail := func(err error) (int, error) {
		p.tracker.finish(docID, inserted, err)
		slog.Warn("ingestion failed", "doc_id", docID, "inserted", inserted, "error", err)
		return inserted, err
	}

	for _, a := range actions {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		a, err := p.sanitizeAction(docID, a)
		if err != nil {
			return fail(err)
		}
		n, err := p.corpus.Insert(ctx, docID, store.KindAction, nil, a.Sentence(), a.Metadata())
		if err != nil {
			return fail(err)
		}
		inserted += n
	}

	for i, text := range pages {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		page := i + 1
		text, err := p.sanitize(docID, text)
		if err != nil {
			return fail(err)
		}
		n, err := p.corpus.Insert(ctx, docID, store.KindPage, &page, text, map[string]any{"page": page})
		if err != nil {
			return fail(err)
		}
		inserted += n
	}

	p.tracker.finish(docID, inserted, nil)
	slog.Info("document ingested",
		"doc_id", docID,
		"inserted", inserted,
		"actions", len(actions),
		"pages", len(pages))
	return inserted, nil
}

func (p *Pipeline) sanitize(docID, text string) (string, error) {
	if p.sanitizer == nil {
		return text, nil
	}
	return p.sanitizer.Document(docID, text)
}

func (p *Pipeline) sanitizeAction(docID string, a ActionRecord) (ActionRecord, error) {
	if p.sanitizer == nil {
		return a, nil
	}
	for _, f := range []*string{&a.Action, &a.Who, &a.When, &a.How, &a.Where} {
		clean, err := p.sanitizer.Document(docID, *f)
		if err != nil {
			return a, err
		}
		*f = clean
	}
	return a, nil
}
