// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/magic-matching/magicmatch/internal/config"
	"github.com/magic-matching/magicmatch/internal/secrets"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the magicmatch HTTP server",
		Long:  "Load configuration, open the store, connect the embedding provider, and serve /add-person, /match-people and /person.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viper.GetViper()
	if err := v.BindPFlag("networking.listen", cmd.Flags().Lookup("listen")); err != nil {
		return err
	}

	if err := secrets.ResolveViperSecrets(v, secretStoreFactory()); err != nil {
		return err
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	config.WarnInsecurePermissions(v.ConfigFileUsed())

	app, err := WireApp(cmd.Context(), cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "magicmatch serving on %s (store=%s, embedding=%s)\n",
		cfg.Networking.Listen, cfg.Storage.Backend, cfg.Embedding.Provider)

	return app.Start(ctx)
}
