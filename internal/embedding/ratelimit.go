// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package embedding

import (
	"context"

	"golang.org/x/time/rate"

	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

type rateLimited struct {
	Provider
	limiter *rate.Limiter
}

// RateLimited throttles calls to p with a token bucket. Each Embed waits for
// a token; a cancelled or expired context aborts the wait.
func RateLimited(p Provider, rps float64, burst int) (Provider, error) {
	if rps <= 0 {
		return nil, mmerr.Errorf(mmerr.CodeEmbeddingConfigInvalid, "rate limit must be positive, got %g", rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimited{Provider: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}, nil
}

func (r *rateLimited) Embed(ctx context.Context, text string) (*Embedding, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, mmerr.Wrapf(err, mmerr.CodeEmbeddingRateLimitTimeout, "%s: waiting for rate limiter", r.Name())
	}
	return r.Provider.Embed(ctx, text)
}
