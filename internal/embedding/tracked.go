// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/magic-matching/magicmatch/pkg/health"
)

// Compile-time interface check.
var _ Provider = (*Tracked)(nil)

// Tracked wraps a Provider and records the outcome of every call in a
// HealthTracker. Context cancellation is not counted as a provider failure.
type Tracked struct {
	inner  Provider
	health *HealthTracker
}

// NewTracked wraps p with a health tracker using the given cooldown.
func NewTracked(p Provider, cooldown time.Duration) (*Tracked, error) {
	h, err := NewHealthTracker(cooldown)
	if err != nil {
		return nil, err
	}
	return &Tracked{inner: p, health: h}, nil
}

func (t *Tracked) Name() string    { return t.inner.Name() }
func (t *Tracked) Dimensions() int { return t.inner.Dimensions() }

// Embed delegates to the wrapped provider.
func (t *Tracked) Embed(ctx context.Context, text string) (*Embedding, error) {
	emb, err := t.inner.Embed(ctx, text)
	switch {
	case err == nil:
		t.health.RecordSuccess()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		t.health.RecordFailure(err)
	}
	return emb, err
}

// Health returns the underlying tracker.
func (t *Tracked) Health() *HealthTracker { return t.health }

// HealthMetrics returns a snapshot of the provider's health.
func (t *Tracked) HealthMetrics() health.Metrics { return t.health.Metrics() }
