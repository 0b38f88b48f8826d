// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

// Package embedding turns text into fixed-length vectors by calling an
// external embedding model. Adapters for concrete providers live in
// sub-packages and register themselves with RegisterProvider.
package embedding

import (
	"context"
	"strings"

	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// DefaultDimensions matches OpenAI text-embedding-ada-002.
const DefaultDimensions = 1536

// Provider maps text to a fixed-length vector.
//
// Implementations must never substitute a zero vector for a failed call:
// a non-success response from the remote model is returned as an error
// carrying CodeEmbeddingUpstreamFailure.
type Provider interface {
	Name() string
	Dimensions() int
	Embed(ctx context.Context, text string) (*Embedding, error)
}

// Embedding is the result of one embedding call.
type Embedding struct {
	Vector []float32
	// TokenCount is the provider's token accounting for the input, used for
	// cost tracking. Zero when the provider does not report usage.
	TokenCount int
}

var newlineReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Normalize replaces every line break with a single space. Embedding models
// are sensitive to line breaks, so all text is normalized before embedding.
func Normalize(text string) string {
	return newlineReplacer.Replace(text)
}

// PrepareInput normalizes text and rejects input that is blank afterwards.
func PrepareInput(text string) (string, error) {
	input := Normalize(text)
	if strings.TrimSpace(input) == "" {
		return "", mmerr.New(mmerr.CodeEmbeddingInputInvalid, "embedding input must not be empty")
	}
	return input, nil
}

// Preview returns the first n characters of s for log context.
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// CheckDimensions verifies that a provider response has the expected length.
func CheckDimensions(provider string, vec []float32, want int) error {
	if len(vec) == 0 {
		return mmerr.New(mmerr.CodeEmbeddingResponseInvalid, provider+": empty embedding in response",
			mmerr.FieldProvider(provider))
	}
	if want > 0 && len(vec) != want {
		return mmerr.Errorf(mmerr.CodeEmbeddingResponseInvalid,
			"%s: embedding has %d dimensions, expected %d", provider, len(vec), want)
	}
	return nil
}
