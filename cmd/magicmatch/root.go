// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/magic-matching/magicmatch/internal/config"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// NewRootCmd creates the root magicmatch command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "magicmatch",
		Short:         "Person profile ingestion and semantic matching",
		Long:          "magicmatch embeds person profile sections and finds the sections most similar to a free-text query.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInitCmd(),
		newServeCmd(),
		newIngestCmd(),
		newMatchCmd(),
		newPersonCmd(),
		newSecretCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper fills the global viper with defaults, the dotenv file, the
// environment and an optional config file, so the usual precedence
// (flag > env > file > defaults) applies to every subcommand.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		// Existing variables win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return mmerr.Errorf(mmerr.CodeConfigLoadReadFailure, "loading %s: %w", envFile, err)
		}
	}

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return mmerr.Errorf(mmerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType stays unset so viper never matches the bare
		// ./magicmatch binary as a config file.
		v.SetConfigName("magicmatch")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/magicmatch")
		v.AddConfigPath("/etc/magicmatch")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return mmerr.Errorf(mmerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
		}
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return mmerr.Errorf(mmerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	if v.GetBool("verbose") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	return nil
}
