// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// defaultHTTPClient is shared by the client commands. Ingest waits for every
// section to be embedded, so the timeout is generous.
var defaultHTTPClient = &http.Client{
	Timeout: 2 * time.Minute,
}

// apiClient talks to a running magicmatch server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

// newAPIClient targets addr, given as host:port or a full http(s) URL.
func newAPIClient(addr string) *apiClient {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &apiClient{
		baseURL: strings.TrimRight(base, "/"),
		http:    defaultHTTPClient,
	}
}

// addAddressFlag registers --address on a client command.
func addAddressFlag(cmd *cobra.Command) {
	cmd.Flags().String("address", "", "server address (default networking.listen)")
}

// clientFor builds a client from --address, falling back to the configured
// listen address.
func clientFor(cmd *cobra.Command) *apiClient {
	addr, _ := cmd.Flags().GetString("address")
	if addr == "" {
		addr = viper.GetString("networking.listen")
	}
	return newAPIClient(addr)
}

func (c *apiClient) getJSON(ctx context.Context, path string, dest any) error {
	return c.do(ctx, http.MethodGet, path, nil, dest)
}

func (c *apiClient) postJSON(ctx context.Context, path string, body, dest any) error {
	return c.do(ctx, http.MethodPost, path, body, dest)
}

func (c *apiClient) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do sends one request and decodes a 2xx JSON response into dest (when
// non-nil). Error responses carry the server's {"error": ...} message.
func (c *apiClient) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return mmerr.Errorf(mmerr.CodeCLIInputInvalid, "encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return mmerr.Errorf(mmerr.CodeCLIRequestFailure, "building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return mmerr.Errorf(mmerr.CodeCLIServerNotRunning, "server at %s is not running (connection refused)", c.baseURL)
		}
		return mmerr.Errorf(mmerr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return mmerr.New(mmerr.CodeCLIRequestFailure, fmt.Sprintf("server returned %d: %s", resp.StatusCode, msg),
			mmerr.FieldStatusCode(resp.StatusCode))
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return mmerr.Errorf(mmerr.CodeCLIResponseInvalid, "invalid response: %w", err)
	}
	return nil
}

func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
