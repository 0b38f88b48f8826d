// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package server_test

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magic-matching/magicmatch/internal/embedding"
	"github.com/magic-matching/magicmatch/internal/ingest"
	"github.com/magic-matching/magicmatch/internal/match"
	"github.com/magic-matching/magicmatch/internal/server"
	"github.com/magic-matching/magicmatch/internal/store"
	"github.com/magic-matching/magicmatch/internal/store/sqlite"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
	"github.com/magic-matching/magicmatch/pkg/health"
)

// axisProvider embeds text onto fixed axes by keyword so similarities are
// predictable, and counts calls.
type axisProvider struct {
	calls atomic.Int32
	fail  bool
}

func (a *axisProvider) Name() string    { return "axis" }
func (a *axisProvider) Dimensions() int { return 3 }

func (a *axisProvider) Embed(_ context.Context, text string) (*embedding.Embedding, error) {
	a.calls.Add(1)
	if a.fail {
		return nil, mmerr.New(mmerr.CodeEmbeddingUpstreamFailure, "provider unavailable")
	}
	vec := []float32{0.1, 0.1, 0.1}
	switch {
	case strings.Contains(text, "outdoor"), strings.Contains(text, "hiking"):
		vec = []float32{1, 0.05, 0}
	case strings.Contains(text, "chess"):
		vec = []float32{0, 1, 0.05}
	}
	return &embedding.Embedding{Vector: vec, TokenCount: 5}, nil
}

func (a *axisProvider) HealthMetrics() health.Metrics {
	return health.Metrics{Calls: int64(a.calls.Load()), Available: !a.fail}
}

// countingStore records whether any store method was called.
type countingStore struct {
	store.PersonStore
	calls atomic.Int32
}

func (c *countingStore) UpsertPerson(ctx context.Context, in *store.PersonInput) (*store.Person, error) {
	c.calls.Add(1)
	return c.PersonStore.UpsertPerson(ctx, in)
}

func (c *countingStore) GetPerson(ctx context.Context, username string) (*store.Person, error) {
	c.calls.Add(1)
	return c.PersonStore.GetPerson(ctx, username)
}

func (c *countingStore) MatchSections(ctx context.Context, params store.MatchParams) ([]store.SectionMatch, error) {
	c.calls.Add(1)
	return c.PersonStore.MatchSections(ctx, params)
}

type testEnv struct {
	srv      *server.Server
	store    *countingStore
	provider *axisProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	base, err := sqlite.NewPersonStore(filepath.Join(t.TempDir(), "server.db"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = base.Close() })

	st := &countingStore{PersonStore: base}
	provider := &axisProvider{}

	ing, err := ingest.NewPipeline(ingest.PipelineConfig{Store: st, Provider: provider, Concurrency: 1})
	require.NoError(t, err)
	m, err := match.NewPipeline(match.PipelineConfig{Store: st, Provider: provider})
	require.NoError(t, err)
	svc, err := server.NewServices(ing, m, st, provider)
	require.NoError(t, err)

	srv := newTestServer(t)
	srv.RegisterServices(svc)
	return &testEnv{srv: srv, store: st, provider: provider}
}

func personBody(username string, contents ...string) map[string]any {
	sections := make([]map[string]any, len(contents))
	for i, c := range contents {
		sections[i] = map[string]any{"slug": "bio", "heading": "About", "content": c}
	}
	return map[string]any{
		"person": map[string]any{
			"organization_id": 1,
			"username":        username,
			"location":        "Berlin",
			"meta":            map[string]any{"age": 30},
			"sections":        sections,
		},
	}
}

func TestAddPerson(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.srv.Handler(), http.MethodPost, "/add-person", personBody("alice", "I like hiking"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode[map[string]any](t, w)
	assert.Equal(t, "Created embeding for alice!", body["message"])
	assert.Equal(t, float64(1), body["sections"])
	assert.Equal(t, false, body["skipped"])

	p, err := env.store.GetPerson(context.Background(), "alice")
	require.NoError(t, err)
	n, err := env.store.CountSections(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAddPerson_AcceptsUnknownFields(t *testing.T) {
	env := newTestEnv(t)

	body := personBody("bob", "plays chess")
	body["person"].(map[string]any)["checksum"] = "ignored"

	w := doJSON(t, env.srv.Handler(), http.MethodPost, "/add-person", body)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAddPerson_ValidationIsClientError(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.srv.Handler(), http.MethodPost, "/add-person", map[string]any{"person": map[string]any{"username": "x"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "at least one section")
	assert.Zero(t, env.provider.calls.Load())
}

func TestAddPerson_ProviderFailure(t *testing.T) {
	env := newTestEnv(t)
	env.provider.fail = true

	w := doJSON(t, env.srv.Handler(), http.MethodPost, "/add-person", personBody("carol", "outdoor life"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "provider unavailable")
}

func TestMatchPeople(t *testing.T) {
	env := newTestEnv(t)
	h := env.srv.Handler()

	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, "/add-person", personBody("alice", "outdoor enthusiast", "weekend hiking trips")).Code)
	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, "/add-person", personBody("bob", "chess club captain")).Code)

	w := doJSON(t, h, http.MethodPost, "/match-people", map[string]any{"query": "outdoor enthusiast"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	type matchResponse struct {
		PersonsMatch []server.SectionMatchBody `json:"persons_match"`
	}
	body := decode[matchResponse](t, w)

	require.Len(t, body.PersonsMatch, 2)
	for i, m := range body.PersonsMatch {
		assert.Equal(t, "alice", m.Username)
		assert.GreaterOrEqual(t, m.Similarity, 0.78)
		if i > 0 {
			assert.LessOrEqual(t, m.Similarity, body.PersonsMatch[i-1].Similarity)
		}
	}
}

func TestMatchPeople_EmptyResultIsArray(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.srv.Handler(), http.MethodPost, "/match-people", map[string]any{"query": "chess", "match_count": 3})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"persons_match":[]}`, w.Body.String())
}

func TestMatchPeople_InvalidThreshold(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.srv.Handler(), http.MethodPost, "/match-people", map[string]any{"query": "x", "match_threshold": 3})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "match_threshold")
}

func TestPreflightTouchesNothing(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/add-person", "/match-people", "/person"} {
		w := doJSON(t, env.srv.Handler(), http.MethodOptions, path, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
	}
	assert.Zero(t, env.store.calls.Load())
	assert.Zero(t, env.provider.calls.Load())
}

func TestEmbeddingHealth(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.srv.Handler(), http.MethodGet, "/api/v1/embedding/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "axis", body["provider"])
}

func TestNewServices_RequiresServices(t *testing.T) {
	_, err := server.NewServices(nil, nil, nil)
	require.Error(t, err)
	assert.True(t, mmerr.HasCode(err, mmerr.CodeServerConfigInvalid))
}

func TestStartWithServices(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, env.srv.Start(ctx))
}
