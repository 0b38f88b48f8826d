// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package ingest_test

import (
	"context"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magic-matching/magicmatch/internal/embedding"
	"github.com/magic-matching/magicmatch/internal/ingest"
	"github.com/magic-matching/magicmatch/internal/store"
	"github.com/magic-matching/magicmatch/internal/store/sqlite"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// fakeProvider returns a deterministic 3-dimensional vector per input. It
// fails for inputs listed in failOn and waits delay before answering inputs
// listed in slow, or every input when delay is set without slow.
type fakeProvider struct {
	mu     sync.Mutex
	inputs []string
	failOn map[string]bool
	slow   map[string]bool
	delay  time.Duration
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Dimensions() int { return 3 }

func (f *fakeProvider) Embed(ctx context.Context, text string) (*embedding.Embedding, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, text)
	f.mu.Unlock()

	if f.delay > 0 && (f.slow == nil || f.slow[text]) {
		select {
		case <-ctx.Done():
			return nil, mmerr.Wrapf(ctx.Err(), mmerr.CodeEmbeddingUpstreamFailure, "fake call canceled")
		case <-time.After(f.delay):
		}
	}
	if f.failOn[text] {
		return nil, mmerr.New(mmerr.CodeEmbeddingUpstreamFailure, "fake upstream failure", mmerr.FieldStatusCode(500))
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum32()
	return &embedding.Embedding{
		Vector:     []float32{float32(sum&0xff) + 1, float32((sum>>8)&0xff) + 1, float32((sum>>16)&0xff) + 1},
		TokenCount: len(strings.Fields(text)),
	}, nil
}

func (f *fakeProvider) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

// failingInsertStore fails InsertSection for one content value.
type failingInsertStore struct {
	store.PersonStore
	failContent string
}

func (s *failingInsertStore) InsertSection(ctx context.Context, personID string, in *store.SectionInput) (*store.Section, error) {
	if in.Content == s.failContent {
		return nil, mmerr.New(mmerr.CodeStoreDatabaseFailure, "disk full")
	}
	return s.PersonStore.InsertSection(ctx, personID, in)
}

func newTestStore(t *testing.T) *sqlite.PersonStore {
	t.Helper()
	s, err := sqlite.NewPersonStore(filepath.Join(t.TempDir(), "ingest.db"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newPipeline(t *testing.T, s store.PersonStore, p embedding.Provider, concurrency int) *ingest.Pipeline {
	t.Helper()
	pipeline, err := ingest.NewPipeline(ingest.PipelineConfig{Store: s, Provider: p, Concurrency: concurrency})
	require.NoError(t, err)
	return pipeline
}

func alicePayload() *ingest.Payload {
	return &ingest.Payload{
		OrganizationID: 1,
		Username:       "alice",
		Location:       "Berlin",
		Meta:           map[string]any{"age": float64(30)},
		Sections: []ingest.Section{
			{Slug: "bio", Heading: "About", Content: "I like hiking"},
		},
	}
}

func TestIngest_SinglePerson(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	pipeline := newPipeline(t, s, &fakeProvider{}, 0)

	res, err := pipeline.Ingest(ctx, alicePayload(), ingest.Options{})
	require.NoError(t, err)
	assert.Equal(t, "Created embeding for alice!", res.Message)
	assert.Equal(t, 1, res.Sections)
	assert.False(t, res.Skipped)

	persons, err := s.ListPersons(ctx, store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, persons, 1)
	assert.True(t, persons[0].Complete())
	assert.Equal(t, ingest.Checksum(alicePayload().Sections), persons[0].Checksum)

	sections, err := s.ListSections(ctx, persons[0].ID)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "I like hiking", sections[0].Content)
	assert.Equal(t, "bio", sections[0].Slug)
	assert.Equal(t, 3, sections[0].TokenCount)
}

func TestIngest_NewlinesNeverReachProvider(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	provider := &fakeProvider{}
	pipeline := newPipeline(t, s, provider, 2)

	payload := alicePayload()
	payload.Sections = []ingest.Section{
		{Content: "line one\nline two"},
		{Content: "windows\r\nline"},
	}

	_, err := pipeline.Ingest(ctx, payload, ingest.Options{})
	require.NoError(t, err)

	for _, input := range provider.calls() {
		assert.NotContains(t, input, "\n")
		assert.NotContains(t, input, "\r")
	}

	p, err := s.GetPerson(ctx, "alice")
	require.NoError(t, err)
	sections, err := s.ListSections(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "line one\nline two", sections[0].Content, "stored content is not rewritten")
}

func TestIngest_ReingestReplacesSections(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	pipeline := newPipeline(t, s, &fakeProvider{}, 4)

	payload := alicePayload()
	payload.Sections = append(payload.Sections, ingest.Section{Slug: "bio", Content: "and camping"})

	_, err := pipeline.Ingest(ctx, payload, ingest.Options{})
	require.NoError(t, err)
	p, err := s.GetPerson(ctx, "alice")
	require.NoError(t, err)
	first, err := s.ListSections(ctx, p.ID)
	require.NoError(t, err)

	_, err = pipeline.Ingest(ctx, payload, ingest.Options{Force: true})
	require.NoError(t, err)
	second, err := s.ListSections(ctx, p.ID)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.NotEqual(t, first[i].ID, second[i].ID)
		assert.InDeltaSlice(t, first[i].Embedding, second[i].Embedding, 1e-6)
	}
}

func TestIngest_UnchangedChecksumSkipsEmbedding(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	provider := &fakeProvider{}
	pipeline := newPipeline(t, s, provider, 1)

	_, err := pipeline.Ingest(ctx, alicePayload(), ingest.Options{})
	require.NoError(t, err)
	require.Len(t, provider.calls(), 1)

	updated := alicePayload()
	updated.Location = "Hamburg"
	res, err := pipeline.Ingest(ctx, updated, ingest.Options{})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Len(t, provider.calls(), 1, "no new embedding calls")
	assert.Equal(t, "Hamburg", res.Person.Location)

	res, err = pipeline.Ingest(ctx, updated, ingest.Options{Force: true})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Len(t, provider.calls(), 2)
}

func TestIngest_SecondSectionEmbeddingFails(t *testing.T) {
	for _, concurrency := range []int{1, 0} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t)
			provider := &fakeProvider{
				failOn: map[string]bool{"second section": true},
				slow:   map[string]bool{"first section": true},
				delay:  50 * time.Millisecond,
			}
			pipeline := newPipeline(t, s, provider, concurrency)

			payload := alicePayload()
			payload.Sections = []ingest.Section{
				{Content: "first section"},
				{Content: "second section"},
			}

			_, err := pipeline.Ingest(ctx, payload, ingest.Options{})
			require.Error(t, err)
			assert.True(t, mmerr.IsProviderError(err))
			assert.True(t, mmerr.HasCode(err, mmerr.CodeEmbeddingUpstreamFailure))
			assert.Contains(t, err.Error(), `section 1 starting with "second section"`)

			p, err := s.GetPerson(ctx, "alice")
			require.NoError(t, err, "person row exists")
			assert.False(t, p.Complete(), "checksum stays cleared")

			sections, err := s.ListSections(ctx, p.ID)
			require.NoError(t, err)
			require.Len(t, sections, 1)
			assert.Equal(t, "first section", sections[0].Content)
		})
	}
}

func TestIngest_FailureCancelsOnlyLaterSections(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	provider := &fakeProvider{
		failOn: map[string]bool{"two": true},
		slow:   map[string]bool{"one": true, "three": true},
		delay:  time.Second,
	}
	pipeline := newPipeline(t, s, provider, 0)

	payload := alicePayload()
	payload.Sections = []ingest.Section{{Content: "zero"}, {Content: "one"}, {Content: "two"}, {Content: "three"}}

	start := time.Now()
	_, err := pipeline.Ingest(ctx, payload, ingest.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "section 2")

	p, err := s.GetPerson(ctx, "alice")
	require.NoError(t, err)
	n, err := s.CountSections(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "sections before the failure are stored")
	assert.GreaterOrEqual(t, time.Since(start), time.Second, "earlier slow section was awaited")
}

func TestIngest_ConcurrentIngestsOfSamePerson(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	pipeline := newPipeline(t, s, &fakeProvider{delay: 30 * time.Millisecond}, 0)

	payload := alicePayload()
	payload.Sections = append(payload.Sections, ingest.Section{Slug: "work", Content: "engineer"})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = pipeline.Ingest(ctx, payload, ingest.Options{Force: true})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	p, err := s.GetPerson(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, p.Complete())
	n, err := s.CountSections(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, len(payload.Sections), n)
}

// interleavingStore inserts a foreign section for the person right before
// the pipeline prunes, as a second process ingesting the same person would.
type interleavingStore struct {
	store.PersonStore
	once sync.Once
}

func (s *interleavingStore) DeleteSectionsExcept(ctx context.Context, personID string, keep []string) (int, error) {
	var err error
	s.once.Do(func() {
		_, err = s.PersonStore.InsertSection(ctx, personID, &store.SectionInput{
			Content:   "written elsewhere",
			Embedding: []float32{1, 1, 1},
		})
	})
	if err != nil {
		return 0, err
	}
	return s.PersonStore.DeleteSectionsExcept(ctx, personID, keep)
}

func TestIngest_PrunesSectionsFromOtherWriters(t *testing.T) {
	ctx := context.Background()
	base := newTestStore(t)
	pipeline := newPipeline(t, &interleavingStore{PersonStore: base}, &fakeProvider{}, 0)

	_, err := pipeline.Ingest(ctx, alicePayload(), ingest.Options{})
	require.NoError(t, err)

	p, err := base.GetPerson(ctx, "alice")
	require.NoError(t, err)
	sections, err := base.ListSections(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "I like hiking", sections[0].Content)
}

func TestIngest_InsertFailureStopsAtSection(t *testing.T) {
	ctx := context.Background()
	base := newTestStore(t)
	s := &failingInsertStore{PersonStore: base, failContent: "middle"}
	pipeline := newPipeline(t, s, &fakeProvider{}, 3)

	payload := alicePayload()
	payload.Sections = []ingest.Section{{Content: "start"}, {Content: "middle"}, {Content: "end"}}

	_, err := pipeline.Ingest(ctx, payload, ingest.Options{})
	require.Error(t, err)
	assert.True(t, mmerr.IsStoreError(err))

	p, err := base.GetPerson(ctx, "alice")
	require.NoError(t, err)
	n, err := base.CountSections(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngest_FailedIngestIsRetriedDespiteMatchingChecksum(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	provider := &fakeProvider{failOn: map[string]bool{"I like hiking": true}}
	pipeline := newPipeline(t, s, provider, 1)

	_, err := pipeline.Ingest(ctx, alicePayload(), ingest.Options{})
	require.Error(t, err)

	provider.failOn = nil
	res, err := pipeline.Ingest(ctx, alicePayload(), ingest.Options{})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.True(t, res.Person.Complete())
}

func TestIngest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		payload *ingest.Payload
	}{
		{name: "nil payload", payload: nil},
		{name: "missing username", payload: &ingest.Payload{Sections: []ingest.Section{{Content: "x"}}}},
		{name: "no sections", payload: &ingest.Payload{Username: "bob"}},
		{name: "blank content", payload: &ingest.Payload{Username: "bob", Sections: []ingest.Section{{Content: "\n\n"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{}
			pipeline := newPipeline(t, newTestStore(t), provider, 1)

			_, err := pipeline.Ingest(context.Background(), tt.payload, ingest.Options{})
			require.Error(t, err)
			assert.True(t, mmerr.IsInvalidInput(err))
			assert.Empty(t, provider.calls())
		})
	}
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	_, err := ingest.NewPipeline(ingest.PipelineConfig{Provider: &fakeProvider{}})
	assert.Error(t, err)

	_, err = ingest.NewPipeline(ingest.PipelineConfig{Store: newTestStore(t)})
	assert.Error(t, err)
}

func TestChecksum(t *testing.T) {
	a := []ingest.Section{{Slug: "a", Content: "bc"}}
	b := []ingest.Section{{Slug: "ab", Content: "c"}}
	assert.NotEqual(t, ingest.Checksum(a), ingest.Checksum(b))
	assert.Equal(t, ingest.Checksum(a), ingest.Checksum([]ingest.Section{{Slug: "a", Content: "bc"}}))
}
