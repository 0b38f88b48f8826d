// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/magic-matching/magicmatch/internal/embedding"
	"github.com/magic-matching/magicmatch/internal/server"
)

func newPersonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "person",
		Short: "Inspect and remove stored persons",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored persons",
		RunE:  runPersonList,
	}
	addAddressFlag(list)
	list.Flags().Int("limit", 0, "maximum persons to list (0 = all)")
	list.Flags().Int("offset", 0, "persons to skip")

	get := &cobra.Command{
		Use:   "get <username>",
		Short: "Show one person as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runPersonGet,
	}
	addAddressFlag(get)

	sections := &cobra.Command{
		Use:   "sections <username>",
		Short: "List the stored sections of a person",
		Args:  cobra.ExactArgs(1),
		RunE:  runPersonSections,
	}
	addAddressFlag(sections)

	del := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a person and its sections",
		Args:  cobra.ExactArgs(1),
		RunE:  runPersonDelete,
	}
	addAddressFlag(del)

	cmd.AddCommand(list, get, sections, del)
	return cmd
}

func runPersonList(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/person"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Persons []server.PersonView `json:"persons"`
	}
	if err := clientFor(cmd).getJSON(cmd.Context(), path, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Persons) == 0 {
		_, _ = fmt.Fprintln(out, "No persons stored.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "USERNAME\tLOCATION\tEMBEDDED\tUPDATED")
	for _, p := range resp.Persons {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", p.Path, p.Location, p.Checksum != "",
			p.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runPersonGet(cmd *cobra.Command, args []string) error {
	var resp struct {
		Person server.PersonView `json:"person"`
	}
	if err := clientFor(cmd).getJSON(cmd.Context(), "/person/"+url.PathEscape(args[0]), &resp); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp.Person)
}

func runPersonSections(cmd *cobra.Command, args []string) error {
	var resp struct {
		Sections []server.SectionView `json:"sections"`
	}
	path := "/person/" + url.PathEscape(args[0]) + "/sections"
	if err := clientFor(cmd).getJSON(cmd.Context(), path, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Sections) == 0 {
		_, _ = fmt.Fprintln(out, "No sections stored.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tSLUG\tHEADING\tTOKENS\tCONTENT")
	for i, sec := range resp.Sections {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", i, sec.Slug, sec.Heading, sec.TokenCount, embedding.Preview(embedding.Normalize(sec.Content), 60))
	}
	return tw.Flush()
}

func runPersonDelete(cmd *cobra.Command, args []string) error {
	if err := clientFor(cmd).delete(cmd.Context(), "/person/"+url.PathEscape(args[0])); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted person: %s\n", args[0])
	return nil
}
