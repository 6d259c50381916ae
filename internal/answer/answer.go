// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

// Package answer composes grounded answers: it retrieves a document's most
// relevant fragments, prompts the Generator with them and the conversation
// so far, attributes the answer to the fragments it quotes and records the
// exchange.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docent-dev/docent/internal/memory"
	"github.com/docent-dev/docent/internal/retrieve"
	"github.com/docent-dev/docent/internal/store"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

const (
	DefaultTopK              = retrieve.DefaultTopK
	DefaultAttributionPrefix = 60

	// DefaultNotFoundText is returned without calling the Generator when a
	// document has no fragments.
	DefaultNotFoundText = "The document does not cover this.\nPlease contact the issuer of the document for more information."
	// DefaultClosingLine ends every generated answer.
	DefaultClosingLine = "Is there anything else you would like to know?"
)

// Outcomes reported to the Recorder.
const (
	OutcomeGrounded = "grounded"
	OutcomeNotFound = "not_found"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

// Searcher ranks a document's fragments against a query.
type Searcher interface {
	Search(ctx context.Context, docID, query string, topK int) ([]retrieve.Result, error)
}

// Memory is the per-document conversation the composer reads and extends.
type Memory interface {
	Context(docID string) (summary string, recent []memory.Turn)
	Append(ctx context.Context, docID string, turn memory.Turn) error
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// QuestionFilter screens a question before retrieval. It may rewrite the
// question or reject it with an error.
type QuestionFilter interface {
	Question(docID, question string) (string, error)
}

// Recorder counts answers by outcome.
type Recorder interface {
	IncAnswer(outcome string)
}

// Options tunes a Composer. Zero values select the defaults.
type Options struct {
	TopK              int
	AttributionPrefix int
	NotFoundText      string
	ClosingLine       string
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.AttributionPrefix <= 0 {
		o.AttributionPrefix = DefaultAttributionPrefix
	}
	if o.NotFoundText == "" {
		o.NotFoundText = DefaultNotFoundText
	}
	if o.ClosingLine == "" {
		o.ClosingLine = DefaultClosingLine
	}
	return o
}

// Citation is a fragment the answer is attributed to.
type Citation struct {
	Kind    store.RecordKind `json:"kind"`
	Text    string           `json:"text"`
	PageNum *int             `json:"page,omitempty"`
	Score   float64          `json:"score"`
}

// Response is the result of Answer. Source is nil only when the document
// had nothing to retrieve.
type Response struct {
	Answer    string     `json:"answer"`
	Source    *string    `json:"source"`
	Citations []Citation `json:"citations,omitempty"`
}

// Composer answers questions about ingested documents.
type Composer struct {
	searcher Searcher
	memory   Memory
	gen      Generator
	recorder Recorder
	filter   QuestionFilter
	opts     Options
}

// New creates a Composer. recorder may be nil.
func New(searcher Searcher, mem Memory, gen Generator, recorder Recorder, opts Options) *Composer {
	return &Composer{
		searcher: searcher,
		memory:   mem,
		gen:      gen,
		recorder: recorder,
		opts:     opts.withDefaults(),
	}
}

// SetQuestionFilter screens every question before it is answered.
func (c *Composer) SetQuestionFilter(f QuestionFilter) { c.filter = f }

// Answer responds to query using only docID's fragments. Generation
// failures fail the call and leave the conversation untouched. A document
// without fragments gets the not-found text and no Generator call; that
// exchange is still recorded.
func (c *Composer) Answer(ctx context.Context, docID, query string) (*Response, error) {
	if strings.TrimSpace(docID) == "" {
		return nil, docerr.New(docerr.CodeAnswerInvalidInput, "doc id is required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, docerr.New(docerr.CodeAnswerInvalidInput, "question is required", docerr.FieldDocID(docID))
	}
	if c.filter != nil {
		filtered, err := c.filter.Question(docID, query)
		if err != nil {
			c.record(OutcomeRejected)
			return nil, err
		}
		query = filtered
	}

	results, err := c.searcher.Search(ctx, docID, query, c.opts.TopK)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		text := c.opts.NotFoundText
		if err := c.memory.Append(ctx, docID, memory.Turn{Question: query, Answer: text}); err != nil {
			c.record(OutcomeFailure)
			return nil, err
		}
		c.record(OutcomeNotFound)
		slog.Debug("no fragments for document", "doc_id", docID)
		return &Response{Answer: text}, nil
	}

	summary, recent := c.memory.Context(docID)
	prompt := c.buildPrompt(docID, summary, recent, results, query)

	raw, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		c.record(OutcomeFailure)
		return nil, docerr.Wrap(err, docerr.CodeAnswerGenerationUpstreamFailed,
			"generating answer", docerr.FieldDocID(docID))
	}
	text := strings.TrimSpace(raw)

	citations := Attribute(text, results, c.opts.AttributionPrefix)
	source := renderSource(citations)

	if err := c.memory.Append(ctx, docID, memory.Turn{Question: query, Answer: text}); err != nil {
		c.record(OutcomeFailure)
		return nil, err
	}
	c.record(OutcomeGrounded)

	slog.Debug("answer composed",
		"doc_id", docID,
		"fragments", len(results),
		"citations", len(citations))

	return &Response{Answer: text, Source: &source, Citations: citations}, nil
}

// Attribute returns the fragments whose first prefixRunes runes occur
// verbatim in answer, in rank order. When none do, the top-ranked fragment
// is returned alone. results must not be empty.
func Attribute(answer string, results []retrieve.Result, prefixRunes int) []Citation {
	var cited []Citation
	for _, r := range results {
		if key := prefix(r.Record.Text, prefixRunes); key != "" && strings.Contains(answer, key) {
			cited = append(cited, citationOf(r))
		}
	}
	if len(cited) == 0 && len(results) > 0 {
		cited = append(cited, citationOf(results[0]))
	}
	return cited
}

func (c *Composer) record(outcome string) {
	if c.recorder != nil {
		c.recorder.IncAnswer(outcome)
	}
}

func citationOf(r retrieve.Result) Citation {
	return Citation{
		Kind:    r.Record.Kind,
		Text:    r.Record.Text,
		PageNum: r.Record.PageNum,
		Score:   r.Score,
	}
}

func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}

// fragmentLine renders a fragment as "- (kind) text".
func fragmentLine(kind store.RecordKind, text string) string {
	return fmt.Sprintf("- (%s) %s", kind, text)
}

func renderSource(cs []Citation) string {
	lines := make([]string, len(cs))
	for i, c := range cs {
		lines[i] = fragmentLine(c.Kind, c.Text)
	}
	return strings.Join(lines, "\n")
}
