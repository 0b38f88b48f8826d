// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

// Package ingest turns a person payload into a stored person with one
// embedded section per input section.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/magic-matching/magicmatch/internal/embedding"
	"github.com/magic-matching/magicmatch/internal/store"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

const (
	// DefaultConcurrency bounds parallel embedding calls per ingest.
	DefaultConcurrency = 4

	// previewLength is how many characters of a failing section are logged.
	previewLength = 40
)

// Section is one textual part of a person profile.
type Section struct {
	Slug    string `json:"slug" yaml:"slug"`
	Heading string `json:"heading" yaml:"heading"`
	Content string `json:"content" yaml:"content"`
}

// Payload is a person profile submitted for ingestion.
type Payload struct {
	OrganizationID int64          `json:"organization_id" yaml:"organization_id"`
	Username       string         `json:"username" yaml:"username"`
	Location       string         `json:"location" yaml:"location"`
	Meta           map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
	Sections       []Section      `json:"sections" yaml:"sections"`
}

// Options adjusts a single ingestion.
type Options struct {
	// Force re-embeds sections even when the stored checksum matches.
	Force bool
}

// Result reports the outcome of a successful ingestion.
type Result struct {
	Person   *store.Person
	Sections int
	Skipped  bool
	Message  string
}

// PipelineConfig holds the dependencies of a Pipeline.
type PipelineConfig struct {
	Store       store.PersonStore
	Provider    embedding.Provider
	Concurrency int
	Logger      *slog.Logger
}

// Pipeline ingests person payloads.
//
// Ingestion is not transactional: when a section fails, sections before it
// stay stored and the person keeps an empty checksum, so it is excluded from
// matching until a later ingest of the same username succeeds. Ingests of the
// same username are serialized within a Pipeline.
type Pipeline struct {
	store       store.PersonStore
	provider    embedding.Provider
	concurrency int
	logger      *slog.Logger
	locks       *personLocks
}

// NewPipeline creates a Pipeline with the given dependencies.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, mmerr.New(mmerr.CodeIngestPayloadInvalid, "ingest pipeline requires a store")
	}
	if cfg.Provider == nil {
		return nil, mmerr.New(mmerr.CodeIngestPayloadInvalid, "ingest pipeline requires an embedding provider")
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		store:       cfg.Store,
		provider:    cfg.Provider,
		concurrency: concurrency,
		logger:      logger,
		locks:       newPersonLocks(),
	}, nil
}

// Message is the confirmation returned to callers after a successful ingest.
func Message(username string) string {
	return fmt.Sprintf("Created embeding for %s!", username)
}

// Checksum fingerprints the sections of a payload in order.
func Checksum(sections []Section) string {
	h := sha256.New()
	for _, s := range sections {
		for _, field := range []string{s.Slug, s.Heading, s.Content} {
			// Length prefixes keep field boundaries unambiguous.
			fmt.Fprintf(h, "%d:%s", len(field), field)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Validate checks the payload before any store or provider call.
func (p *Payload) Validate() error {
	if p == nil {
		return mmerr.New(mmerr.CodeIngestPayloadInvalid, "person payload is required")
	}
	if strings.TrimSpace(p.Username) == "" {
		return mmerr.New(mmerr.CodeIngestPayloadInvalid, "person username is required")
	}
	if len(p.Sections) == 0 {
		return mmerr.New(mmerr.CodeIngestPayloadInvalid, "person must have at least one section",
			mmerr.FieldUsername(p.Username))
	}
	for i, s := range p.Sections {
		if strings.TrimSpace(embedding.Normalize(s.Content)) == "" {
			return mmerr.Errorf(mmerr.CodeIngestPayloadInvalid, "section %d of %q has empty content", i, p.Username)
		}
	}
	return nil
}

// Ingest stores the person and the embedding of every section.
//
// Steps: validate, compare checksums, upsert and clear the checksum, drop
// previous sections, embed with bounded fan-out, insert in input order until
// the first failure, drop sections this ingest did not write, set the
// checksum.
func (p *Pipeline) Ingest(ctx context.Context, payload *Payload, opts Options) (*Result, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	username := payload.Username
	unlock := p.locks.lock(username)
	defer unlock()

	checksum := Checksum(payload.Sections)
	in := &store.PersonInput{
		OrganizationID: payload.OrganizationID,
		Username:       username,
		Location:       payload.Location,
		Meta:           payload.Meta,
	}

	if !opts.Force {
		existing, err := p.store.GetPerson(ctx, username)
		if err != nil && !mmerr.IsNotFound(err) {
			return nil, err
		}
		if existing != nil && existing.Checksum == checksum {
			person, err := p.store.UpsertPerson(ctx, in)
			if err != nil {
				return nil, err
			}
			p.logger.Info("person sections unchanged, skipping embeddings",
				slog.String("username", username),
				slog.Int("sections", len(payload.Sections)),
			)
			return &Result{Person: person, Sections: len(payload.Sections), Skipped: true, Message: Message(username)}, nil
		}
	}

	person, err := p.store.UpsertPerson(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := p.store.ClearChecksum(ctx, person.ID); err != nil {
		return nil, err
	}
	person.Checksum = ""

	removed, err := p.store.DeleteSectionsForPerson(ctx, person.ID)
	if err != nil {
		return nil, err
	}

	p.logger.Info("adding person sections",
		slog.String("username", username),
		slog.Int("sections", len(payload.Sections)),
		slog.Int("replaced", removed),
	)

	embeddings, embedErrs := p.embedAll(ctx, payload.Sections)

	written := make([]string, 0, len(payload.Sections))
	for i, section := range payload.Sections {
		input := embedding.Normalize(section.Content)

		err := embedErrs[i]
		if err == nil {
			emb := embeddings[i]
			var sec *store.Section
			sec, err = p.store.InsertSection(ctx, person.ID, &store.SectionInput{
				Slug:       section.Slug,
				Heading:    section.Heading,
				Content:    section.Content,
				TokenCount: emb.TokenCount,
				Embedding:  emb.Vector,
			})
			if err == nil {
				written = append(written, sec.ID)
			}
		}
		if err != nil {
			p.logSectionFailure(username, i, input, err)
			return nil, mmerr.Wrap(err, mmerr.CodeIngestSectionFailure,
				fmt.Sprintf("person %q section %d starting with %q", username, i, embedding.Preview(input, previewLength)),
				mmerr.FieldUsername(username),
				mmerr.FieldPersonID(person.ID),
				mmerr.FieldSection(embedding.Preview(input, previewLength)),
			)
		}
	}

	// Another writer for the same username may have inserted rows meanwhile.
	stale, err := p.store.DeleteSectionsExcept(ctx, person.ID, written)
	if err != nil {
		return nil, err
	}
	if stale > 0 {
		p.logger.Warn("removed sections written by a concurrent ingest",
			slog.String("username", username),
			slog.Int("removed", stale),
		)
	}

	if err := p.store.SetChecksum(ctx, person.ID, checksum); err != nil {
		return nil, err
	}
	person.Checksum = checksum

	return &Result{Person: person, Sections: len(payload.Sections), Message: Message(username)}, nil
}

func (p *Pipeline) logSectionFailure(username string, index int, input string, err error) {
	attrs := []any{
		slog.String("username", username),
		slog.String("section", embedding.Preview(input, previewLength)+"..."),
		slog.Int("index", index),
		slog.String("error", err.Error()),
	}
	if fields := mmerr.FieldsOf(err); len(fields) > 0 {
		attrs = append(attrs, slog.Any("details", fields))
	}

	switch {
	case mmerr.IsProviderError(err):
		p.logger.Error("failed to generate embeddings for person section", attrs...)
	case mmerr.IsStoreError(err):
		p.logger.Error("failed to store person section", attrs...)
	default:
		p.logger.Warn("person section was not ingested", attrs...)
	}
}

// embedAll embeds every section with at most p.concurrency calls in flight.
// A failure at index i cancels only the sections after i, so every section
// before the first failure still gets its embedding. Results and errors are
// indexed like sections.
func (p *Pipeline) embedAll(ctx context.Context, sections []Section) ([]*embedding.Embedding, []error) {
	results := make([]*embedding.Embedding, len(sections))
	errs := make([]error, len(sections))

	ctxs := make([]context.Context, len(sections))
	cancels := make([]context.CancelFunc, len(sections))
	for i := range sections {
		ctxs[i], cancels[i] = context.WithCancel(ctx)
	}
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	var (
		mu        sync.Mutex
		firstFail = len(sections)
	)
	fail := func(i int) {
		mu.Lock()
		defer mu.Unlock()
		if i >= firstFail {
			return
		}
		for j := i + 1; j < firstFail; j++ {
			cancels[j]()
		}
		firstFail = i
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i, section := range sections {
		g.Go(func() error {
			sctx := ctxs[i]
			if err := sctx.Err(); err != nil {
				errs[i] = mmerr.Wrapf(err, mmerr.CodeIngestSectionFailure, "embedding canceled")
				return nil
			}
			emb, err := p.provider.Embed(sctx, embedding.Normalize(section.Content))
			if err != nil {
				errs[i] = err
				fail(i)
				return nil
			}
			results[i] = emb
			return nil
		})
	}
	_ = g.Wait()

	return results, errs
}

// personLocks hands out one mutex per username.
type personLocks struct {
	mu   sync.Mutex
	held map[string]*personLock
}

type personLock struct {
	sync.Mutex
	refs int
}

func newPersonLocks() *personLocks {
	return &personLocks{held: make(map[string]*personLock)}
}

// lock blocks until username is free and returns the release func.
func (l *personLocks) lock(username string) func() {
	l.mu.Lock()
	pl, ok := l.held[username]
	if !ok {
		pl = &personLock{}
		l.held[username] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.Lock()
	return func() {
		pl.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.held, username)
		}
		l.mu.Unlock()
	}
}
