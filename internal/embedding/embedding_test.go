// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package embedding_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/magic-matching/magicmatch/internal/embedding"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	err   error
	calls int
}

func (s *stubProvider) Name() string    { return "stub" }
func (s *stubProvider) Dimensions() int { return 2 }

func (s *stubProvider) Embed(_ context.Context, _ string) (*embedding.Embedding, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &embedding.Embedding{Vector: []float32{1, 0}, TokenCount: 1}, nil
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"no breaks", "no breaks"},
		{"a\nb", "a b"},
		{"a\r\nb", "a b"},
		{"a\rb", "a b"},
		{"a\n\nb", "a  b"},
		{"", ""},
	}
	for _, tt := range tests {
		got := embedding.Normalize(tt.in)
		assert.Equal(t, tt.want, got, "Normalize(%q)", tt.in)
		assert.NotContains(t, got, "\n")
		assert.NotContains(t, got, "\r")
	}
}

func TestPrepareInput(t *testing.T) {
	got, err := embedding.PrepareInput("Loves\nhiking")
	require.NoError(t, err)
	assert.Equal(t, "Loves hiking", got)

	_, err = embedding.PrepareInput(" \n ")
	require.Error(t, err)
	assert.True(t, mmerr.HasCode(err, mmerr.CodeEmbeddingInputInvalid))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", embedding.Preview("short", 40))
	assert.Equal(t, "abc", embedding.Preview("abcdef", 3))
	assert.Equal(t, "héé", embedding.Preview("héééé", 3))
}

func TestCheckDimensions(t *testing.T) {
	require.NoError(t, embedding.CheckDimensions("p", []float32{1, 2}, 2))
	assert.True(t, mmerr.HasCode(embedding.CheckDimensions("p", nil, 2), mmerr.CodeEmbeddingResponseInvalid))
	assert.True(t, mmerr.HasCode(embedding.CheckDimensions("p", []float32{1}, 2), mmerr.CodeEmbeddingResponseInvalid))
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := embedding.New(embedding.Config{Provider: "nope"})
	require.Error(t, err)
	assert.True(t, mmerr.IsNotFound(err))
}

func TestNew_UsesRegisteredFactory(t *testing.T) {
	stub := &stubProvider{}
	embedding.RegisterProvider("stub-factory", func(cfg embedding.Config) (embedding.Provider, error) {
		assert.Equal(t, embedding.DefaultDimensions, cfg.Dimensions)
		return stub, nil
	})

	p, err := embedding.New(embedding.Config{Provider: "stub-factory", RateLimitRPS: 100})
	require.NoError(t, err)
	assert.Equal(t, "stub", p.Name())

	_, err = p.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, int64(1), p.HealthMetrics().Calls)
}

func TestTracked_RecordsFailures(t *testing.T) {
	stub := &stubProvider{err: mmerr.New(mmerr.CodeEmbeddingUpstreamFailure, "status 500")}
	tr, err := embedding.NewTracked(stub, time.Minute)
	require.NoError(t, err)

	_, err = tr.Embed(context.Background(), "x")
	require.Error(t, err)

	m := tr.HealthMetrics()
	assert.False(t, m.Available)
	assert.Equal(t, int64(1), m.FailureCount)
	assert.Contains(t, m.LastError, "status 500")
	require.NotNil(t, m.CooldownUntil)

	stub.err = nil
	_, err = tr.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, tr.HealthMetrics().Available)
	assert.Equal(t, int64(2), tr.HealthMetrics().Calls)
}

func TestTracked_IgnoresCancellation(t *testing.T) {
	stub := &stubProvider{err: context.Canceled}
	tr, err := embedding.NewTracked(stub, time.Minute)
	require.NoError(t, err)

	_, err = tr.Embed(context.Background(), "x")
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, tr.HealthMetrics().Available)
	assert.Zero(t, tr.HealthMetrics().FailureCount)
}

func TestHealthTracker_CooldownExpiry(t *testing.T) {
	now := time.Now()
	h, err := embedding.NewHealthTracker(10 * time.Second)
	require.NoError(t, err)
	h.SetNowFunc(func() time.Time { return now })

	h.RecordFailure(stderrors.New("boom"))
	assert.False(t, h.IsHealthy())

	h.SetNowFunc(func() time.Time { return now.Add(10 * time.Second) })
	assert.True(t, h.IsHealthy(), "should recover at the cooldown boundary")
}

func TestHealthTracker_InvalidCooldown(t *testing.T) {
	_, err := embedding.NewHealthTracker(0)
	require.Error(t, err)
	assert.True(t, mmerr.IsInvalidInput(err))
}

func TestRateLimited(t *testing.T) {
	_, err := embedding.RateLimited(&stubProvider{}, 0, 1)
	require.Error(t, err)

	p, err := embedding.RateLimited(&stubProvider{}, 0.001, 1)
	require.NoError(t, err)

	// First call consumes the only token.
	_, err = p.Embed(context.Background(), "x")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Embed(ctx, "x")
	require.Error(t, err)
	assert.True(t, mmerr.HasCode(err, mmerr.CodeEmbeddingRateLimitTimeout))
}
