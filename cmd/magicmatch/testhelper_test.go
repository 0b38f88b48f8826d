// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/magic-matching/magicmatch/internal/config"
)

// fakeEmbeddings serves the OpenAI embeddings endpoint with 3-dimensional
// vectors: texts mentioning "golang" point along x, "cooking" along y, and
// everything else along z.
func fakeEmbeddings(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding embedding request: %v", err)
		}

		vec := []float64{0, 0, 1}
		switch text := strings.ToLower(body.Input); {
		case strings.Contains(text, "golang"):
			vec = []float64{1, 0, 0}
		case strings.Contains(text, "cooking"):
			vec = []float64{0, 1, 0}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-ada-002",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vec},
			},
			"usage": map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// testConfig returns a valid config backed by a temporary sqlite file and
// the fake embedding server.
func testConfig(t *testing.T, embeddingURL string) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Networking.Listen = "127.0.0.1:0"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "magicmatch.db")
	cfg.Embedding.APIKey = "sk-test"
	cfg.Embedding.BaseURL = embeddingURL
	cfg.Embedding.Dimensions = 3
	cfg.Match.Threshold = 0.5
	return cfg
}

// startApp wires an App and serves it over httptest.
func startApp(t *testing.T) (*App, *httptest.Server) {
	t.Helper()
	app, err := WireApp(t.Context(), testConfig(t, fakeEmbeddings(t).URL), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	srv := httptest.NewServer(app.Server.Handler())
	t.Cleanup(srv.Close)
	return app, srv
}

// runCLI executes the root command with args and returns its output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(viper.Reset)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}
