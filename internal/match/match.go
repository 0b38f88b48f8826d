// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

// Package match answers free-text queries with the most similar stored
// person sections.
package match

import (
	"context"
	"log/slog"
	"strings"

	"github.com/magic-matching/magicmatch/internal/embedding"
	"github.com/magic-matching/magicmatch/internal/store"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// Defaults applied when a query leaves a parameter unset.
const (
	DefaultThreshold        = 0.78
	DefaultCount            = 10
	DefaultMinContentLength = 5
)

// Query is a semantic search request. Nil fields take the pipeline defaults.
type Query struct {
	Text      string
	Threshold *float64
	Count     *int
}

// PipelineConfig holds the dependencies and defaults of a Pipeline. Nil
// defaults take the package constants; an explicit zero is kept.
type PipelineConfig struct {
	Store            store.PersonStore
	Provider         embedding.Provider
	Threshold        *float64
	Count            *int
	MinContentLength *int
	Logger           *slog.Logger
}

// Pipeline embeds a query once and searches the store. It keeps no state
// between calls.
type Pipeline struct {
	store            store.PersonStore
	provider         embedding.Provider
	threshold        float64
	count            int
	minContentLength int
	logger           *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, mmerr.New(mmerr.CodeMatchQueryInvalid, "match pipeline requires a store")
	}
	if cfg.Provider == nil {
		return nil, mmerr.New(mmerr.CodeMatchQueryInvalid, "match pipeline requires an embedding provider")
	}

	p := &Pipeline{
		store:            cfg.Store,
		provider:         cfg.Provider,
		threshold:        DefaultThreshold,
		count:            DefaultCount,
		minContentLength: DefaultMinContentLength,
		logger:           cfg.Logger,
	}
	if cfg.Threshold != nil {
		p.threshold = *cfg.Threshold
	}
	if cfg.Count != nil {
		p.count = *cfg.Count
	}
	if cfg.MinContentLength != nil {
		p.minContentLength = *cfg.MinContentLength
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// Match returns sections ordered by similarity descending. An empty result is
// not an error.
func (p *Pipeline) Match(ctx context.Context, q Query) ([]store.SectionMatch, error) {
	threshold := p.threshold
	if q.Threshold != nil {
		threshold = *q.Threshold
	}
	count := p.count
	if q.Count != nil {
		count = *q.Count
	}

	if threshold < -1 || threshold > 1 {
		return nil, mmerr.Errorf(mmerr.CodeMatchQueryInvalid, "match_threshold must be within [-1, 1], got %g", threshold)
	}
	if count < 0 {
		return nil, mmerr.Errorf(mmerr.CodeMatchQueryInvalid, "match_count must not be negative, got %d", count)
	}

	input := embedding.Normalize(q.Text)
	if strings.TrimSpace(input) == "" {
		return nil, mmerr.New(mmerr.CodeMatchQueryInvalid, "query is required")
	}

	emb, err := p.provider.Embed(ctx, input)
	if err != nil {
		if mmerr.IsProviderError(err) {
			p.logger.Error("failed to embed match query",
				slog.String("query", embedding.Preview(input, 40)),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	matches, err := p.store.MatchSections(ctx, store.MatchParams{
		Embedding:        emb.Vector,
		Threshold:        threshold,
		Count:            count,
		MinContentLength: p.minContentLength,
	})
	if err != nil {
		if mmerr.IsStoreError(err) {
			p.logger.Error("failed to match person sections",
				slog.Float64("threshold", threshold),
				slog.Int("count", count),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	p.logger.Debug("matched person sections",
		slog.Float64("threshold", threshold),
		slog.Int("count", count),
		slog.Int("results", len(matches)),
	)
	return matches, nil
}
