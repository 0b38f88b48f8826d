// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/magic-matching/magicmatch/internal/embedding"
	"github.com/magic-matching/magicmatch/internal/server"
)

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <query...>",
		Short: "Find the person sections most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runMatch,
	}
	addAddressFlag(cmd)
	cmd.Flags().Float64("threshold", 0, "minimum similarity (server default when unset)")
	cmd.Flags().Int("count", 0, "maximum number of results (server default when unset)")
	cmd.Flags().Bool("json", false, "print the raw JSON response")
	return cmd
}

func runMatch(cmd *cobra.Command, args []string) error {
	req := map[string]any{"query": strings.Join(args, " ")}
	if cmd.Flags().Changed("threshold") {
		v, _ := cmd.Flags().GetFloat64("threshold")
		req["match_threshold"] = v
	}
	if cmd.Flags().Changed("count") {
		v, _ := cmd.Flags().GetInt("count")
		req["match_count"] = v
	}

	var resp struct {
		PersonsMatch []server.SectionMatchBody `json:"persons_match"`
	}
	if err := clientFor(cmd).postJSON(cmd.Context(), "/match-people", req, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if len(resp.PersonsMatch) == 0 {
		_, _ = fmt.Fprintln(out, "No matches.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SIMILARITY\tUSERNAME\tHEADING\tCONTENT")
	for _, m := range resp.PersonsMatch {
		_, _ = fmt.Fprintf(tw, "%.4f\t%s\t%s\t%s\n", m.Similarity, m.Username, m.Heading,
			embedding.Preview(embedding.Normalize(m.Content), 60))
	}
	return tw.Flush()
}
