// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package memory_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docent-dev/docent/internal/memory"
	docerr "github.com/docent-dev/docent/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	reply   string
	err     error
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if g.reply != "" {
		return g.reply, nil
	}
	return fmt.Sprintf("summary #%d", g.calls), nil
}

func (g *stubGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type compactionCounter struct {
	mu       sync.Mutex
	outcomes map[string]int
	active   int
}

func (c *compactionCounter) IncCompaction(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcomes == nil {
		c.outcomes = map[string]int{}
	}
	c.outcomes[outcome]++
}

func (c *compactionCounter) SetActiveDocuments(n int) {
	c.mu.Lock()
	c.active = n
	c.mu.Unlock()
}

func turn(i int) memory.Turn {
	return memory.Turn{Question: fmt.Sprintf("q%d", i), Answer: fmt.Sprintf("a%d", i)}
}

func newManager(t *testing.T, cfg memory.Config, gen memory.Generator, rec memory.Recorder) *memory.Manager {
	t.Helper()
	m := memory.NewManager(cfg, gen, rec)
	t.Cleanup(m.Close)
	return m
}

func TestAppend_UpToMaxTurnsDoesNotCompact(t *testing.T) {
	gen := &stubGenerator{}
	m := newManager(t, memory.Config{}, gen, nil)
	ctx := context.Background()

	for i := 1; i <= memory.DefaultMaxTurns; i++ {
		require.NoError(t, m.Append(ctx, "doc", turn(i)))
	}

	summary, recent := m.Context("doc")
	assert.Empty(t, summary)
	assert.Equal(t, []memory.Turn{turn(1), turn(2), turn(3)}, recent)
	assert.Equal(t, 0, gen.Calls())
}

func TestAppend_FourthTurnCompacts(t *testing.T) {
	gen := &stubGenerator{}
	counter := &compactionCounter{}
	m := newManager(t, memory.Config{MaxTurns: 3}, gen, counter)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		require.NoError(t, m.Append(ctx, "doc", turn(i)))
	}

	summary, recent := m.Context("doc")
	assert.NotEmpty(t, summary)
	assert.Equal(t, []memory.Turn{turn(2), turn(3), turn(4)}, recent)
	require.Equal(t, 1, gen.Calls())
	assert.Contains(t, gen.prompts[0], "Q: q1\nA: a1")
	assert.NotContains(t, gen.prompts[0], "Q: q2")
	assert.Equal(t, 1, counter.outcomes["success"])
}

func TestAppend_NeverExceedsMaxTurns(t *testing.T) {
	gen := &stubGenerator{}
	m := newManager(t, memory.Config{MaxTurns: 3}, gen, nil)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		require.NoError(t, m.Append(ctx, "doc", turn(i)))
		_, recent := m.Context("doc")
		assert.LessOrEqual(t, len(recent), 3)
	}

	summary, recent := m.Context("doc")
	assert.Equal(t, "summary #7", summary)
	assert.Equal(t, []memory.Turn{turn(8), turn(9), turn(10)}, recent)
	// Later compactions carry the previous summary forward.
	assert.Contains(t, gen.prompts[6], "summary #6")
}

func TestAppend_CompactionFailureLeavesStateUnchanged(t *testing.T) {
	gen := &stubGenerator{}
	counter := &compactionCounter{}
	m := newManager(t, memory.Config{MaxTurns: 3}, gen, counter)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		require.NoError(t, m.Append(ctx, "doc", turn(i)))
	}
	before, _ := m.Snapshot("doc")

	gen.mu.Lock()
	gen.err = stderrors.New("model overloaded")
	gen.mu.Unlock()

	err := m.Append(ctx, "doc", turn(5))
	require.Error(t, err)
	assert.True(t, docerr.IsUpstreamFailure(err))
	assert.True(t, docerr.HasCode(err, docerr.CodeMemoryCompactionUpstreamFailed))

	after, ok := m.Snapshot("doc")
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, counter.outcomes["failure"])
}

func TestAppend_EmptySummaryKeepsTranscript(t *testing.T) {
	gen := &stubGenerator{reply: "   "}
	counter := &compactionCounter{}
	m := newManager(t, memory.Config{MaxTurns: 1}, gen, counter)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "doc", turn(1)))
	require.NoError(t, m.Append(ctx, "doc", turn(2)))

	summary, recent := m.Context("doc")
	assert.Equal(t, "Q: q1\nA: a1", summary)
	assert.Equal(t, []memory.Turn{turn(2)}, recent)
	assert.Equal(t, 1, counter.outcomes["fallback"])
}

func TestAppend_ConcurrentSameDocument(t *testing.T) {
	gen := &stubGenerator{}
	m := newManager(t, memory.Config{MaxTurns: 3}, gen, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Append(ctx, "doc", turn(i)))
		}()
	}
	wg.Wait()

	summary, recent := m.Context("doc")
	assert.Len(t, recent, 3)
	assert.NotEmpty(t, summary)
	assert.Equal(t, 17, gen.Calls(), "every append past the third compacts exactly once")
}

func TestAppend_DocumentsAreIndependent(t *testing.T) {
	m := newManager(t, memory.Config{}, &stubGenerator{}, nil)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "a", turn(1)))
	require.NoError(t, m.Append(ctx, "b", turn(2)))

	_, ra := m.Context("a")
	_, rb := m.Context("b")
	assert.Equal(t, []memory.Turn{turn(1)}, ra)
	assert.Equal(t, []memory.Turn{turn(2)}, rb)
}

func TestAppend_Validation(t *testing.T) {
	m := newManager(t, memory.Config{}, &stubGenerator{}, nil)
	err := m.Append(context.Background(), "", turn(1))
	assert.True(t, docerr.IsInvalidInput(err))
}

func TestContext_UnknownDocument(t *testing.T) {
	m := newManager(t, memory.Config{}, &stubGenerator{}, nil)
	summary, recent := m.Context("nope")
	assert.Empty(t, summary)
	assert.Empty(t, recent)
	assert.Equal(t, 0, m.Len(), "reading context must not create state")
}

func TestContext_ReturnsCopy(t *testing.T) {
	m := newManager(t, memory.Config{}, &stubGenerator{}, nil)
	require.NoError(t, m.Append(context.Background(), "doc", turn(1)))

	_, recent := m.Context("doc")
	recent[0].Answer = "mutated"

	_, again := m.Context("doc")
	assert.Equal(t, "a1", again[0].Answer)
}

func TestEvict(t *testing.T) {
	counter := &compactionCounter{}
	m := newManager(t, memory.Config{}, &stubGenerator{}, counter)
	ctx := context.Background()
	require.NoError(t, m.Append(ctx, "doc", turn(1)))

	ok, err := m.Evict(ctx, "doc")
	require.NoError(t, err)
	assert.True(t, ok)
	_, exists := m.Snapshot("doc")
	assert.False(t, exists)
	assert.Equal(t, 0, counter.active)

	ok, err = m.Evict(ctx, "doc")
	require.NoError(t, err)
	assert.False(t, ok)

	// A fresh conversation starts after eviction.
	require.NoError(t, m.Append(ctx, "doc", turn(2)))
	_, recent := m.Context("doc")
	assert.Equal(t, []memory.Turn{turn(2)}, recent)
}

func TestSweep_ExpiresIdleConversations(t *testing.T) {
	m := newManager(t, memory.Config{IdleTTL: time.Minute}, &stubGenerator{}, nil)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m.SetNowFunc(func() time.Time { return now })

	require.NoError(t, m.Append(ctx, "old", turn(1)))
	now = base.Add(50 * time.Second)
	require.NoError(t, m.Append(ctx, "fresh", turn(2)))

	now = base.Add(90 * time.Second)
	assert.Equal(t, 1, m.Sweep())

	_, oldExists := m.Snapshot("old")
	_, freshExists := m.Snapshot("fresh")
	assert.False(t, oldExists)
	assert.True(t, freshExists)
}

func TestStartJanitor_DisabledWithoutTTL(t *testing.T) {
	m := newManager(t, memory.Config{}, &stubGenerator{}, nil)
	require.NoError(t, m.Append(context.Background(), "doc", turn(1)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 1, m.Len())
}

func TestStartJanitor_Expires(t *testing.T) {
	m := newManager(t, memory.Config{IdleTTL: time.Nanosecond}, &stubGenerator{}, nil)
	require.NoError(t, m.Append(context.Background(), "doc", turn(1)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, time.Millisecond)

	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMaxDocuments_EvictsLeastRecentlyUsed(t *testing.T) {
	m := newManager(t, memory.Config{MaxDocuments: 2}, &stubGenerator{}, nil)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m.SetNowFunc(func() time.Time { return now })

	require.NoError(t, m.Append(ctx, "a", turn(1)))
	now = now.Add(time.Second)
	require.NoError(t, m.Append(ctx, "b", turn(2)))
	now = now.Add(time.Second)
	m.Context("a")
	now = now.Add(time.Second)
	require.NoError(t, m.Append(ctx, "c", turn(3)))

	assert.Equal(t, 2, m.Len())
	_, aExists := m.Snapshot("a")
	_, bExists := m.Snapshot("b")
	assert.True(t, aExists, "recently read conversation survives")
	assert.False(t, bExists)
}

func TestCompactionPrompt(t *testing.T) {
	p := memory.CompactionPrompt("", []memory.Turn{turn(1), turn(2)})
	assert.Contains(t, p, "(none)")
	assert.Contains(t, p, "Q: q1\nA: a1\n\nQ: q2\nA: a2")

	p = memory.CompactionPrompt("tenant owes rent", []memory.Turn{turn(3)})
	assert.Contains(t, p, "tenant owes rent")
	assert.NotContains(t, p, "(none)")
}
