// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magic-matching/magicmatch/internal/server"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

func newTestServer(t *testing.T) *server.Server {
	t.Helper()
	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = srv.Close()
	})
	return srv
}

// doJSON sends a request with an optional JSON body and returns the recorder.
func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func TestServer_New_EmptyListenAddr(t *testing.T) {
	_, err := server.New(server.Config{})
	require.Error(t, err)
	assert.True(t, mmerr.HasCode(err, mmerr.CodeServerConfigInvalid), "expected CodeServerConfigInvalid, got %s", mmerr.CodeOf(err))
	assert.Contains(t, err.Error(), "listen address is required")
}

func TestServer_New_InvalidRateLimit(t *testing.T) {
	_, err := server.New(server.Config{ListenAddr: "127.0.0.1:0", RateLimit: server.RateLimitConfig{RequestsPerSecond: -1}})
	require.Error(t, err)
	assert.True(t, mmerr.HasCode(err, mmerr.CodeServerConfigInvalid))
}

func TestServer_HealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestServer_OpenAPISpec(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv.Handler(), http.MethodGet, "/openapi.json", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "openapi")
	assert.Contains(t, w.Body.String(), "openapi")
}

func TestServer_CORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/add-person", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "apikey, content-type")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Body.String())
}

func TestServer_BareOptions(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/add-person", "/match-people", "/person/alice", "/nowhere"} {
		t.Run(path, func(t *testing.T) {
			w := doJSON(t, srv.Handler(), http.MethodOptions, path, nil)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "x-client-info")
			assert.Empty(t, w.Body.String())
		})
	}
}

func TestServer_RecoversPanicsAsJSON(t *testing.T) {
	srv := newTestServer(t)
	srv.Handler().(interface {
		Get(string, http.HandlerFunc)
	}).Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	w := doJSON(t, srv.Handler(), http.MethodGet, "/boom", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "internal server error", body["error"])
}

func TestServer_RateLimit(t *testing.T) {
	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		RateLimit:  server.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1},
	})
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	first := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded", decode[map[string]string](t, second)["error"])
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
