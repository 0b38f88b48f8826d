// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/magic-matching/magicmatch/internal/secrets"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// secretStoreFactory creates a secrets.Store. Tests substitute a mock.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long: "Store, list and delete secrets kept under the magicmatch keyring service. " +
			"Reference them from the config as keyring://magicmatch/<name>.",
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret (value read from --value or the first line of stdin)",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretSet,
	}
	cmd.Flags().String("value", "", "secret value")
	return cmd
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored secret names",
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]
	value, _ := cmd.Flags().GetString("value")
	if value == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return mmerr.Errorf(mmerr.CodeCLIInputInvalid, "reading secret value: %w", err)
		}
		value = strings.TrimRight(line, "\r\n")
	}
	if value == "" {
		return mmerr.New(mmerr.CodeCLIInputInvalid, "secret value must not be empty")
	}

	if err := secretStoreFactory().Store(secrets.DefaultService, name, value); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret: %s (use %s in config)\n",
		name, secrets.KeyringURI(secrets.DefaultService, name))
	return nil
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	keys, err := secretStoreFactory().List(secrets.DefaultService)
	if err != nil {
		return mmerr.Errorf(mmerr.CodeSecretListFailure, "listing secrets: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}

	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	if err := secretStoreFactory().Delete(secrets.DefaultService, name); err != nil {
		if mmerr.HasCode(err, mmerr.CodeSecretNotFound) {
			return mmerr.Errorf(mmerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return mmerr.Errorf(mmerr.CodeSecretDeleteFailure, "deleting secret %q: %w", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
