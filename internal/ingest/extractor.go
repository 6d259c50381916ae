// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package ingest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/docent-dev/docent/internal/extract"
)

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const actionPrompt = `Extract every concrete action a reader of the document below must take.
Return JSON only, no prose and no code fences, in this form:
{"actions": [{"action": "", "who": "", "when": "", "how": "", "where": ""}]}

Field meanings:
- action: what must be done, as a specific noun phrase naming the tax, benefit, form or office involved
- who: who must do it
- when: the deadline or time
- how: the method (in person, online, by post, by phone)
- where: the office, branch or call centre

Merge actions that mean the same thing. Leave a field empty when the document does not say.

Document:
`

const entityPrompt = `List the named entities in the document below, grouped by a short type name of your choosing
(for example organisation, amount, date, account). Return JSON only, no prose and no code fences,
as one object mapping each type to a list of strings.

Document:
`

// Extractor asks the Generator for structured data about a document.
// Failures are logged and degrade to empty results.
type Extractor struct {
	gen Generator
}

func NewExtractor(gen Generator) *Extractor {
	return &Extractor{gen: gen}
}

// Actions extracts action records from the document's pages.
func (e *Extractor) Actions(ctx context.Context, docID string, pages []string) []ActionRecord {
	raw, err := e.gen.Generate(ctx, actionPrompt+joinPages(pages))
	if err != nil {
		slog.Warn("action extraction failed", "doc_id", docID, "error", err)
		return nil
	}

	maps, res := extract.ParseActions(raw)
	if !res.OK() {
		slog.Warn("action extraction returned unusable output", "doc_id", docID, "error", res.Err)
		return nil
	}
	if res.Recovered {
		slog.Debug("action extraction output repaired", "doc_id", docID)
	}

	actions := make([]ActionRecord, 0, len(maps))
	for _, m := range maps {
		actions = append(actions, ActionFromMap(m))
	}
	return actions
}

// Entities extracts named entities from the document's pages.
func (e *Extractor) Entities(ctx context.Context, docID string, pages []string) extract.Entities {
	raw, err := e.gen.Generate(ctx, entityPrompt+joinPages(pages))
	if err != nil {
		slog.Warn("entity extraction failed", "doc_id", docID, "error", err)
		return extract.Entities{}
	}
	ents, res := extract.ParseEntities(raw)
	if !res.OK() {
		slog.Warn("entity extraction returned unusable output", "doc_id", docID, "error", res.Err)
		return extract.Entities{}
	}
	return ents
}

func joinPages(pages []string) string {
	return strings.Join(pages, "\n\n")
}
