// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package memory

import "time"

// SetNowFunc replaces the manager's clock.
func (m *Manager) SetNowFunc(fn func() time.Time) {
	m.mu.Lock()
	m.now = fn
	m.mu.Unlock()
}

// Sweep runs one janitor pass and returns the number of expired conversations.
func (m *Manager) Sweep() int { return m.sweep() }

// CompactionPrompt exposes compactionPrompt for white-box testing.
var CompactionPrompt = compactionPrompt
