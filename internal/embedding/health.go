// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package embedding

import (
	"sync"
	"time"

	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
	"github.com/magic-matching/magicmatch/pkg/health"
)

// HealthTracker records embedding call outcomes. A provider is considered
// healthy until RecordFailure is called; after a failure it is reported
// unavailable for a cooldown period, after which it becomes available again.
//
// The tracker is informational: calls are never blocked or retried based on
// its state.
type HealthTracker struct {
	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	lastErr      string
	cooldown     time.Duration
	calls        int64
	failureCount int64
	nowFunc      func() time.Time // for testing
}

// DefaultHealthCooldown is the duration after which an unhealthy provider is
// reported available again.
const DefaultHealthCooldown = 30 * time.Second

// NewHealthTracker creates a HealthTracker that starts healthy.
// Returns an error if cooldown is zero or negative.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, mmerr.Errorf(mmerr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// isHealthyLocked reports whether the provider is healthy or the cooldown
// has elapsed. The caller MUST hold at least h.mu.RLock.
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

// RecordSuccess marks the provider as healthy.
func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.calls++
	h.healthy = true
	h.mu.Unlock()
}

// RecordFailure marks the provider as unhealthy and increments the
// cumulative failure count.
func (h *HealthTracker) RecordFailure(err error) {
	h.mu.Lock()
	h.calls++
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failureCount++
	if err != nil {
		h.lastErr = err.Error()
	}
	h.mu.Unlock()
}

// SetNowFunc overrides the time source (for testing).
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// Metrics returns a point-in-time snapshot of the tracker's state.
func (h *HealthTracker) Metrics() health.Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := health.Metrics{
		Calls:        h.calls,
		FailureCount: h.failureCount,
		LastError:    h.lastErr,
	}

	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}

	m.Available = h.isHealthyLocked()
	if !h.healthy {
		cooldownEnd := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &cooldownEnd
	}
	return m
}
