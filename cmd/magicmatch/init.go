// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/magic-matching/magicmatch/internal/config"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		RunE:  runInit,
	}
	cmd.Flags().String("path", "", "config file to create (default ~/.config/magicmatch/magicmatch.yaml)")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("path")
	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if err := config.WriteDefault(path); err != nil {
		if errors.Is(err, os.ErrExist) {
			_, _ = fmt.Fprintf(out, "Config already exists at %s\n", path)
			return nil
		}
		return err
	}

	_, _ = fmt.Fprintf(out, "Wrote %s\n", path)
	_, _ = fmt.Fprintln(out, "Store your embedding API key with: magicmatch secret set embedding-api-key")
	return nil
}
