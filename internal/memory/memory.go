// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

// Package memory keeps a bounded, self-summarising conversation history per
// document. Turns beyond MaxTurns are folded into a rolling summary by the
// Generator before the oldest ones are dropped.
package memory

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

const (
	DefaultMaxTurns     = 3
	DefaultIdleTTL      = 30 * time.Minute
	DefaultMaxDocuments = 1024
)

// Turn is one question and the answer given to it.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// State is a document's conversation: the newest turns plus a summary of
// everything older.
type State struct {
	History []Turn `json:"history"`
	Summary string `json:"summary"`
}

func (s State) clone() State {
	out := State{Summary: s.Summary}
	if len(s.History) > 0 {
		out.History = append([]Turn(nil), s.History...)
	}
	return out
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Recorder receives compaction outcomes and the number of live conversations.
type Recorder interface {
	IncCompaction(outcome string)
	SetActiveDocuments(n int)
}

// Config bounds the manager. IdleTTL <= 0 disables idle expiry and
// MaxDocuments <= 0 disables the cap.
type Config struct {
	MaxTurns     int
	IdleTTL      time.Duration
	MaxDocuments int
}

type entry struct {
	lane *Lane

	stateMu sync.RWMutex
	state   State

	// guarded by Manager.mu
	lastUsed time.Time
	inflight int
}

func (e *entry) snapshot() State {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state.clone()
}

func (e *entry) commit(s State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
}

// Manager owns every document's conversation state. Appends for one
// document are serialised on that document's Lane; documents are
// independent of one another.
type Manager struct {
	cfg      Config
	gen      Generator
	recorder Recorder

	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// NewManager creates a Manager. recorder may be nil.
func NewManager(cfg Config, gen Generator, recorder Recorder) *Manager {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	return &Manager{
		cfg:      cfg,
		gen:      gen,
		recorder: recorder,
		entries:  make(map[string]*entry),
		now:      time.Now,
	}
}

// MaxTurns returns the history bound.
func (m *Manager) MaxTurns() int { return m.cfg.MaxTurns }

// Append records turn for docID. When the history would exceed MaxTurns,
// the overflow is summarised first; the turn becomes visible only together
// with the new summary. On error the conversation is unchanged.
func (m *Manager) Append(ctx context.Context, docID string, turn Turn) error {
	if docID == "" {
		return docerr.New(docerr.CodeMemoryInvalidInput, "doc id is required")
	}

	e := m.acquire(docID, true)
	defer m.release(e)

	return e.lane.Submit(ctx, func(ctx context.Context) error {
		cur := e.snapshot()
		next := State{
			History: append(cur.History, turn),
			Summary: cur.Summary,
		}

		if over := len(next.History) - m.cfg.MaxTurns; over > 0 {
			summary, err := m.compact(ctx, docID, cur.Summary, next.History[:over])
			if err != nil {
				return err
			}
			next.Summary = summary
			next.History = append([]Turn(nil), next.History[over:]...)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		e.commit(next)
		return nil
	})
}

// Context returns the rolling summary and a copy of the recent turns, oldest
// first. An unknown document has neither.
func (m *Manager) Context(docID string) (string, []Turn) {
	e := m.acquire(docID, false)
	if e == nil {
		return "", nil
	}
	defer m.release(e)

	s := e.snapshot()
	return s.Summary, s.History
}

// Snapshot returns a copy of docID's state and whether one exists.
func (m *Manager) Snapshot(docID string) (State, bool) {
	m.mu.Lock()
	e, ok := m.entries[docID]
	m.mu.Unlock()
	if !ok {
		return State{}, false
	}
	return e.snapshot(), true
}

// Evict discards docID's conversation and reports whether there was one.
// A busy conversation is reset in order behind its pending appends.
func (m *Manager) Evict(ctx context.Context, docID string) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[docID]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	if e.inflight == 0 {
		delete(m.entries, docID)
		n := len(m.entries)
		m.mu.Unlock()

		e.lane.Close()
		m.reportActive(n)
		slog.Debug("conversation evicted", "doc_id", docID)
		return true, nil
	}
	e.inflight++
	m.mu.Unlock()
	defer m.release(e)

	err := e.lane.Submit(ctx, func(context.Context) error {
		e.commit(State{})
		return nil
	})
	return true, err
}

// Len returns the number of live conversations.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// StartJanitor expires conversations idle for longer than IdleTTL every
// interval until ctx is done. It does nothing when IdleTTL is disabled.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if m.cfg.IdleTTL <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.sweep(); n > 0 {
					slog.Info("expired idle conversations", "count", n)
				}
			}
		}
	}()
}

// Close stops every lane and forgets all state.
func (m *Manager) Close() {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range entries {
		e.lane.Close()
	}
	m.reportActive(0)
}

func (m *Manager) sweep() int {
	cutoff := m.now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	var expired []*entry
	for docID, e := range m.entries {
		if e.inflight == 0 && e.lastUsed.Before(cutoff) {
			expired = append(expired, e)
			delete(m.entries, docID)
		}
	}
	n := len(m.entries)
	m.mu.Unlock()

	for _, e := range expired {
		e.lane.Close()
	}
	if len(expired) > 0 {
		m.reportActive(n)
	}
	return len(expired)
}

// acquire pins docID's entry so it cannot be evicted until release. With
// create unset a missing entry yields nil.
func (m *Manager) acquire(docID string, create bool) *entry {
	m.mu.Lock()
	e, ok := m.entries[docID]
	if !ok {
		if !create {
			m.mu.Unlock()
			return nil
		}
		victim := m.evictLRULocked()
		e = &entry{lane: NewLane(docID)}
		m.entries[docID] = e
		n := len(m.entries)
		defer m.reportActive(n)
		if victim != nil {
			defer victim.lane.Close()
		}
	}
	e.inflight++
	e.lastUsed = m.now()
	m.mu.Unlock()
	return e
}

func (m *Manager) release(e *entry) {
	m.mu.Lock()
	e.inflight--
	e.lastUsed = m.now()
	m.mu.Unlock()
}

// evictLRULocked makes room for one more entry by dropping the least
// recently used idle one. Pinned entries are never chosen; if every entry is
// pinned the cap is exceeded temporarily.
func (m *Manager) evictLRULocked() *entry {
	if m.cfg.MaxDocuments <= 0 || len(m.entries) < m.cfg.MaxDocuments {
		return nil
	}
	var (
		oldestID string
		oldest   *entry
	)
	for docID, e := range m.entries {
		if e.inflight > 0 {
			continue
		}
		if oldest == nil || e.lastUsed.Before(oldest.lastUsed) {
			oldestID, oldest = docID, e
		}
	}
	if oldest == nil {
		slog.Warn("conversation cap exceeded, all conversations busy", "max_documents", m.cfg.MaxDocuments)
		return nil
	}
	delete(m.entries, oldestID)
	slog.Debug("conversation evicted to respect cap", "doc_id", oldestID)
	return oldest
}

func (m *Manager) compact(ctx context.Context, docID, prior string, dropped []Turn) (string, error) {
	prompt := compactionPrompt(prior, dropped)
	summary, err := m.gen.Generate(ctx, prompt)
	if err != nil {
		m.recordCompaction("failure")
		return "", docerr.Wrap(err, docerr.CodeMemoryCompactionUpstreamFailed,
			"summarising conversation", docerr.FieldDocID(docID))
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		// Keep the dropped turns verbatim rather than lose them.
		slog.Warn("compaction returned an empty summary, keeping transcript", "doc_id", docID)
		m.recordCompaction("fallback")
		return strings.TrimSpace(joinSummary(prior, FormatTurns(dropped))), nil
	}
	m.recordCompaction("success")
	return summary, nil
}

func (m *Manager) recordCompaction(outcome string) {
	if m.recorder != nil {
		m.recorder.IncCompaction(outcome)
	}
}

func (m *Manager) reportActive(n int) {
	if m.recorder != nil {
		m.recorder.SetActiveDocuments(n)
	}
}
