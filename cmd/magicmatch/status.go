// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/magic-matching/magicmatch/internal/server"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
	"github.com/magic-matching/magicmatch/pkg/health"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Long:  "Query a running server's health endpoint and, when available, its embedding provider health.",
		RunE:  runStatus,
	}
	addAddressFlag(cmd)
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	client := clientFor(cmd)
	out := cmd.OutOrStdout()

	var body server.HealthBody
	if err := client.getJSON(cmd.Context(), "/health", &body); err != nil {
		if mmerr.HasCode(err, mmerr.CodeCLIServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (connection refused)\n", client.baseURL)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Server at %s: %s\n", client.baseURL, err)
		return nil
	}
	_, _ = fmt.Fprintf(out, "Server at %s: %s\n", client.baseURL, body.Status)

	var emb struct {
		Provider string         `json:"provider"`
		Health   health.Metrics `json:"health"`
	}
	if err := client.getJSON(cmd.Context(), "/api/v1/embedding/health", &emb); err != nil {
		return nil
	}
	state := "available"
	if !emb.Health.Available {
		state = "cooling down"
	}
	_, _ = fmt.Fprintf(out, "Embedding provider %s: %s (calls=%d, failures=%d)\n",
		emb.Provider, state, emb.Health.Calls, emb.Health.FailureCount)
	if emb.Health.LastError != "" {
		_, _ = fmt.Fprintf(out, "  last error: %s\n", emb.Health.LastError)
	}
	return nil
}
