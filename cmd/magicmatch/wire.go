// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/magic-matching/magicmatch/internal/config"
	"github.com/magic-matching/magicmatch/internal/embedding"
	_ "github.com/magic-matching/magicmatch/internal/embedding/google" // register google provider
	_ "github.com/magic-matching/magicmatch/internal/embedding/openai" // register openai provider
	"github.com/magic-matching/magicmatch/internal/ingest"
	"github.com/magic-matching/magicmatch/internal/match"
	"github.com/magic-matching/magicmatch/internal/server"
	"github.com/magic-matching/magicmatch/internal/store"
	_ "github.com/magic-matching/magicmatch/internal/store/postgres" // register postgres backend
	_ "github.com/magic-matching/magicmatch/internal/store/sqlite"   // register sqlite backend
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// App holds the wired subsystems and manages their lifecycle.
type App struct {
	Server   *server.Server
	Store    store.PersonStore
	Provider *embedding.Tracked
}

// WireApp opens the store, builds the embedding provider and both pipelines,
// and registers them on a new HTTP server.
func WireApp(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	storeCfg := cfg.StoreConfig()
	st, err := store.Open(&storeCfg)
	if err != nil {
		return nil, mmerr.Wrapf(err, mmerr.CodeCLISetupFailure, "opening %s store", storeCfg.Backend)
	}

	app, err := wireServices(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return app, nil
}

func wireServices(cfg *config.Config, st store.PersonStore, logger *slog.Logger) (*App, error) {
	provider, err := embedding.New(cfg.EmbeddingConfig())
	if err != nil {
		return nil, mmerr.Wrapf(err, mmerr.CodeCLISetupFailure, "creating embedding provider %s", cfg.Embedding.Provider)
	}
	if provider.Dimensions() != st.Dimensions() {
		return nil, mmerr.Errorf(mmerr.CodeCLISetupFailure,
			"embedding provider produces %d dimensions but the store holds %d", provider.Dimensions(), st.Dimensions())
	}

	ingestPipeline, err := ingest.NewPipeline(ingest.PipelineConfig{
		Store:       st,
		Provider:    provider,
		Concurrency: cfg.Ingest.Concurrency,
		Logger:      logger,
	})
	if err != nil {
		return nil, mmerr.Wrapf(err, mmerr.CodeCLISetupFailure, "creating ingest pipeline")
	}

	matchPipeline, err := match.NewPipeline(match.PipelineConfig{
		Store:            st,
		Provider:         provider,
		Threshold:        &cfg.Match.Threshold,
		Count:            &cfg.Match.Count,
		MinContentLength: &cfg.Match.MinContentLength,
		Logger:           logger,
	})
	if err != nil {
		return nil, mmerr.Wrapf(err, mmerr.CodeCLISetupFailure, "creating match pipeline")
	}

	services, err := server.NewServices(ingestPipeline, matchPipeline, st, provider)
	if err != nil {
		return nil, mmerr.Wrapf(err, mmerr.CodeCLISetupFailure, "creating services")
	}

	srvCfg := cfg.ServerConfig()
	srvCfg.Logger = logger
	srv, err := server.New(srvCfg)
	if err != nil {
		return nil, mmerr.Wrapf(err, mmerr.CodeCLISetupFailure, "creating server")
	}
	srv.RegisterServices(services)

	logger.Info("wired magicmatch",
		"store", cfg.Storage.Backend,
		"embedding_provider", provider.Name(),
		"dimensions", provider.Dimensions(),
	)

	return &App{Server: srv, Store: st, Provider: provider}, nil
}

// Start runs the HTTP server and blocks until the context is cancelled.
func (a *App) Start(ctx context.Context) error {
	return a.Server.Start(ctx)
}

// Close releases all resources held by the app.
func (a *App) Close() error {
	type closer interface{ Close() error }
	closers := []closer{a.Server, a.Store}

	var errs []error
	for _, c := range closers {
		if c != nil {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
