// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/magic-matching/magicmatch/internal/ingest"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Send a person profile to the server for embedding",
		Long: "Read a person payload (YAML or JSON, \"-\" for stdin) with username, " +
			"location, meta and sections, and post it to /add-person.",
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}
	addAddressFlag(cmd)
	cmd.Flags().Bool("force", false, "re-embed even when the sections are unchanged")
	return cmd
}

// readPayload decodes a person payload. JSON is valid YAML, so one decoder
// handles both formats.
func readPayload(cmd *cobra.Command, path string) (*ingest.Payload, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, mmerr.Errorf(mmerr.CodeCLIInputInvalid, "opening %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var payload ingest.Payload
	if err := yaml.NewDecoder(r).Decode(&payload); err != nil {
		return nil, mmerr.Errorf(mmerr.CodeCLIInputInvalid, "decoding %s: %w", path, err)
	}
	return &payload, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	payload, err := readPayload(cmd, args[0])
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")

	req := struct {
		Person *ingest.Payload `json:"person"`
		Force  bool            `json:"force,omitempty"`
	}{Person: payload, Force: force}

	var resp struct {
		Message  string `json:"message"`
		Sections int    `json:"sections"`
		Skipped  bool   `json:"skipped"`
	}
	if err := clientFor(cmd).postJSON(cmd.Context(), "/add-person", req, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resp.Skipped {
		_, _ = fmt.Fprintf(out, "%s (sections unchanged, embedding skipped)\n", resp.Message)
		return nil
	}
	_, _ = fmt.Fprintf(out, "%s (%d sections)\n", resp.Message, resp.Sections)
	return nil
}
