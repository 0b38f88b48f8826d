// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package openai

import (
	"context"
	"errors"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/magic-matching/magicmatch/internal/embedding"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-ada-002"

func init() {
	embedding.RegisterProvider("openai", func(cfg embedding.Config) (embedding.Provider, error) {
		return New(Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	})
}

// Config holds OpenAI embedding configuration.
type Config struct {
	APIKey     string
	BaseURL    string // optional, useful for testing against a mock server
	Model      string
	Dimensions int
}

// Compile-time interface check.
var _ embedding.Provider = (*Provider)(nil)

// Provider implements embedding.Provider using the OpenAI Embeddings API.
type Provider struct {
	client     openaisdk.Client
	model      string
	dimensions int
}

// New creates a new OpenAI embedding provider. Returns an error if the API
// key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, mmerr.New(mmerr.CodeEmbeddingConfigInvalid, "openai: missing api_key in config", mmerr.FieldProvider("openai"))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = embedding.DefaultDimensions
	}

	// Retries are the caller's decision; the SDK must not retry silently.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		client:     openaisdk.NewClient(opts...),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

func (p *Provider) Name() string    { return "openai" }
func (p *Provider) Dimensions() int { return p.dimensions }

// Embed requests a single embedding for text.
func (p *Provider) Embed(ctx context.Context, text string) (*embedding.Embedding, error) {
	input, err := embedding.PrepareInput(text)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Embeddings.New(ctx, buildParams(input, p.model, p.dimensions))
	if err != nil {
		return nil, upstreamError(err)
	}

	if len(resp.Data) == 0 {
		return nil, mmerr.New(mmerr.CodeEmbeddingResponseInvalid, "openai: response contained no embeddings",
			mmerr.FieldProvider("openai"))
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	if err := embedding.CheckDimensions("openai", vec, p.dimensions); err != nil {
		return nil, err
	}

	return &embedding.Embedding{
		Vector:     vec,
		TokenCount: int(resp.Usage.TotalTokens),
	}, nil
}

// buildParams converts an input string into SDK request params. The
// dimensions parameter is only sent to models that accept it.
func buildParams(input, model string, dimensions int) openaisdk.EmbeddingNewParams {
	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfString: openaisdk.String(input)},
		Model: openaisdk.EmbeddingModel(model),
	}
	if strings.HasPrefix(model, "text-embedding-3") {
		params.Dimensions = param.NewOpt(int64(dimensions))
	}
	return params
}

// upstreamError converts an SDK error into a coded provider error that keeps
// the HTTP status and response body for diagnosis.
func upstreamError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return mmerr.Wrapf(err, mmerr.CodeEmbeddingUpstreamFailure, "openai: embedding request aborted")
	}

	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		return mmerr.Wrap(err, mmerr.CodeEmbeddingUpstreamFailure, "openai: embedding request failed",
			mmerr.FieldProvider("openai"),
			mmerr.FieldStatusCode(apiErr.StatusCode),
		)
	}
	return mmerr.Wrap(err, mmerr.CodeEmbeddingUpstreamFailure, "openai: embedding request failed", mmerr.FieldProvider("openai"))
}
