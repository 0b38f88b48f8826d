// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/magic-matching/magicmatch/internal/ingest"
	"github.com/magic-matching/magicmatch/internal/match"
	"github.com/magic-matching/magicmatch/internal/server"
	"github.com/magic-matching/magicmatch/internal/store"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
	"github.com/magic-matching/magicmatch/pkg/health"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec registers every route against stub services and returns the
// OpenAPI document huma derives from the request and response types.
func generateSpec() ([]byte, error) {
	svc, err := server.NewServices(stubIngest{}, stubMatch{}, stubPersons{}, stubEmbedding{})
	if err != nil {
		return nil, err
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, mmerr.Errorf(mmerr.CodeCLISetupFailure, "creating server: %w", err)
	}
	defer func() { _ = srv.Close() }()
	srv.RegisterServices(svc)

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// Stubs are never called during spec generation.

type stubIngest struct{}

func (stubIngest) Ingest(context.Context, *ingest.Payload, ingest.Options) (*ingest.Result, error) {
	return nil, nil
}

type stubMatch struct{}

func (stubMatch) Match(context.Context, match.Query) ([]store.SectionMatch, error) { return nil, nil }

type stubPersons struct{}

func (stubPersons) ListPersons(context.Context, store.ListOpts) ([]*store.Person, error) {
	return nil, nil
}
func (stubPersons) GetPerson(context.Context, string) (*store.Person, error) { return nil, nil }
func (stubPersons) CreatePerson(context.Context, *store.PersonInput) (*store.Person, error) {
	return nil, nil
}
func (stubPersons) UpdatePerson(context.Context, string, *store.PersonUpdate) (*store.Person, error) {
	return nil, nil
}
func (stubPersons) DeletePerson(context.Context, string) error { return nil }
func (stubPersons) ListSections(context.Context, string) ([]*store.Section, error) {
	return nil, nil
}

type stubEmbedding struct{}

func (stubEmbedding) Name() string                  { return "stub" }
func (stubEmbedding) HealthMetrics() health.Metrics { return health.Metrics{} }
