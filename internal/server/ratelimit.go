// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

const (
	visitorStaleAfter = 10 * time.Minute
	visitorSweepEvery = 5 * time.Minute
)

// RateLimitConfig configures a per-IP token bucket.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate per IP. Zero disables limiting.
	RequestsPerMinute int
	Burst             int
	// MaxVisitors caps the number of tracked IPs; the least recently seen
	// are dropped first. Defaults to 10000.
	MaxVisitors int
}

// Validate checks c and fills in defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerMinute < 0 {
		return docerr.Errorf(docerr.CodeServerConfigInvalid,
			"rate limit requests per minute must not be negative (got %d)", c.RequestsPerMinute)
	}
	if c.RequestsPerMinute > 0 && c.Burst <= 0 {
		return docerr.Errorf(docerr.CodeServerConfigInvalid,
			"rate limit burst must be positive when a rate is set (got burst=%d, rpm=%d)", c.Burst, c.RequestsPerMinute)
	}
	if c.MaxVisitors < 0 {
		return docerr.Errorf(docerr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = 10000
	}
	return nil
}

type visitor struct {
	tokens     float64
	lastRefill time.Time
	lastSeen   time.Time
}

type rateLimiter struct {
	perSecond float64
	burst     float64
	max       int
	now       func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

// newRateLimiter returns nil when cfg disables limiting.
func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		return nil
	}
	return &rateLimiter{
		perSecond: float64(cfg.RequestsPerMinute) / 60,
		burst:     float64(cfg.Burst),
		max:       cfg.MaxVisitors,
		now:       time.Now,
		visitors:  make(map[string]*visitor),
	}
}

func (l *rateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{tokens: l.burst, lastRefill: now}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	v.tokens = min(l.burst, v.tokens+now.Sub(v.lastRefill).Seconds()*l.perSecond)
	v.lastRefill = now
	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

// sweep drops stale visitors, then the oldest ones beyond the cap.
func (l *rateLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	type seen struct {
		ip string
		at time.Time
	}
	live := make([]seen, 0, len(l.visitors))
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorStaleAfter {
			delete(l.visitors, ip)
			continue
		}
		live = append(live, seen{ip, v.lastSeen})
	}

	if l.max <= 0 || len(live) <= l.max {
		return
	}
	slices.SortFunc(live, func(a, b seen) int { return a.at.Compare(b.at) })
	evict := len(live) - l.max
	for _, s := range live[:evict] {
		delete(l.visitors, s.ip)
	}
	slog.Warn("rate limiter visitor cap enforced", "evicted", evict, "max_visitors", l.max)
}

func (l *rateLimiter) cleanupLoop(done <-chan struct{}) {
	ticker := time.NewTicker(visitorSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-done:
			return
		}
	}
}

// limitChat is a huma middleware rejecting over-rate clients with 429.
func (s *Server) limitChat(ctx huma.Context, next func(huma.Context)) {
	if s.limiter == nil {
		next(ctx)
		return
	}
	ip := clientIP(ctx.RemoteAddr())
	if !s.limiter.allow(ip) {
		slog.Warn("rate limit exceeded", "ip", ip, "path", ctx.URL().Path)
		ctx.SetHeader("Retry-After", "60")
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	next(ctx)
}

// clientIP strips the port so one client's connections share a bucket.
func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
