// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package google

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/magic-matching/magicmatch/internal/embedding"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-004"

func init() {
	embedding.RegisterProvider("google", func(cfg embedding.Config) (embedding.Provider, error) {
		return New(Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	})
}

// Config holds Google embedding configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// Compile-time interface check.
var _ embedding.Provider = (*Provider)(nil)

// Provider implements embedding.Provider using the Gemini API.
type Provider struct {
	client     *genai.Client
	model      string
	dimensions int
}

// New creates a new Google embedding provider. Returns an error if the API
// key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, mmerr.New(mmerr.CodeEmbeddingConfigInvalid, "google: missing api_key in config", mmerr.FieldProvider("google"))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = embedding.DefaultDimensions
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, mmerr.Wrapf(err, mmerr.CodeEmbeddingUpstreamFailure, "google: creating client")
	}

	return &Provider{client: client, model: cfg.Model, dimensions: cfg.Dimensions}, nil
}

func (p *Provider) Name() string    { return "google" }
func (p *Provider) Dimensions() int { return p.dimensions }

// Embed requests a single embedding for text.
func (p *Provider) Embed(ctx context.Context, text string) (*embedding.Embedding, error) {
	input, err := embedding.PrepareInput(text)
	if err != nil {
		return nil, err
	}

	dims := int32(p.dimensions)
	resp, err := p.client.Models.EmbedContent(ctx, p.model, genai.Text(input), &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, mmerr.Wrap(err, mmerr.CodeEmbeddingUpstreamFailure, "google: embedding request failed",
				mmerr.FieldProvider("google"),
				mmerr.FieldStatusCode(apiErr.Code),
			)
		}
		return nil, mmerr.Wrap(err, mmerr.CodeEmbeddingUpstreamFailure, "google: embedding request failed", mmerr.FieldProvider("google"))
	}

	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, mmerr.New(mmerr.CodeEmbeddingResponseInvalid, "google: response contained no embeddings",
			mmerr.FieldProvider("google"))
	}

	first := resp.Embeddings[0]
	if err := embedding.CheckDimensions("google", first.Values, p.dimensions); err != nil {
		return nil, err
	}

	out := &embedding.Embedding{Vector: first.Values}
	if first.Statistics != nil {
		out.TokenCount = int(first.Statistics.TokenCount)
	}
	return out, nil
}
