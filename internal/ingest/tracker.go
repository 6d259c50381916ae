// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package ingest

import (
	"sync"
	"time"

	"github.com/docent-dev/docent/internal/extract"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

// Stage is a step of document ingestion.
type Stage string

const (
	StagePending    Stage = "pending"
	StageExtracting Stage = "extracting"
	StageEmbedding  Stage = "embedding"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Terminal reports whether no further transitions follow.
func (s Stage) Terminal() bool { return s == StageDone || s == StageFailed }

// Progress is a snapshot of one document's ingestion.
type Progress struct {
	DocID     string    `json:"doc_id"`
	Step      Stage     `json:"step"`
	Inserted  int       `json:"inserted"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	Entities extract.Entities `json:"entities,omitempty"`
}

// Tracker records the latest ingestion stage per document.
type Tracker struct {
	mu    sync.RWMutex
	state map[string]Progress
	now   func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{state: make(map[string]Progress), now: time.Now}
}

// begin resets docID to pending, discarding any earlier run.
func (t *Tracker) begin(docID string) {
	t.mu.Lock()
	t.state[docID] = Progress{DocID: docID, Step: StagePending, UpdatedAt: t.now().UTC()}
	t.mu.Unlock()
}

func (t *Tracker) update(docID string, fn func(*Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.state[docID]
	p.DocID = docID
	fn(&p)
	p.UpdatedAt = t.now().UTC()
	t.state[docID] = p
}

func (t *Tracker) advance(docID string, step Stage) {
	t.update(docID, func(p *Progress) { p.Step = step })
}

func (t *Tracker) finish(docID string, inserted int, err error) {
	t.update(docID, func(p *Progress) {
		p.Inserted = inserted
		p.Step = StageDone
		if err != nil {
			p.Step = StageFailed
			p.Error = err.Error()
		}
	})
}

// Get returns docID's progress or a not-found error if it was never seen.
func (t *Tracker) Get(docID string) (Progress, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.state[docID]
	if !ok {
		return Progress{}, docerr.New(docerr.CodeIngestProgressNotFound, "no ingestion recorded",
			docerr.FieldDocID(docID))
	}
	return p, nil
}
