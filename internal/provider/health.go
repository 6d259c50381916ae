// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package provider

import (
	"sync"
	"time"

	docerr "github.com/docent-dev/docent/pkg/errors"
	"github.com/docent-dev/docent/pkg/health"
)

// HealthTracker records generation failures for one provider. The provider
// is unhealthy after a failure until either a success is recorded or the
// cooldown elapses, at which point it is tried again.
type HealthTracker struct {
	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	cooldown     time.Duration
	failureCount int64
	nowFunc      func() time.Time
}

// DefaultHealthCooldown is the duration after which an unhealthy provider
// becomes eligible for retry.
const DefaultHealthCooldown = 30 * time.Second

// NewHealthTracker creates a HealthTracker that starts healthy.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, docerr.Errorf(docerr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// NewDefaultHealthTracker returns a tracker with DefaultHealthCooldown.
func NewDefaultHealthTracker() *HealthTracker {
	return &HealthTracker{healthy: true, cooldown: DefaultHealthCooldown, nowFunc: time.Now}
}

// Caller must hold at least h.mu.RLock.
func (h *HealthTracker) isHealthyLocked() bool {
	if h.healthy {
		return true
	}
	return h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

// IsHealthy returns true if the provider is healthy or the cooldown has elapsed.
func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isHealthyLocked()
}

func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.healthy = true
	h.mu.Unlock()
}

func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failureCount++
	h.mu.Unlock()
}

// SetNowFunc overrides the time source (for testing).
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the tracker's state.
func (h *HealthTracker) Snapshot() health.Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := health.Metrics{
		FailureCount: h.failureCount,
		Available:    h.isHealthyLocked(),
	}
	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}
	if !h.healthy {
		until := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &until
	}
	return m
}
