// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

//go:embed magicmatch.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/magicmatch/magicmatch.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", mmerr.Errorf(mmerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "magicmatch", "magicmatch.yaml"), nil
}

// WriteDefault writes DefaultConfigYAML to path with mode 0600. An existing
// file is left untouched and reported as os.ErrExist.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.ErrExist
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return mmerr.Errorf(mmerr.CodeConfigLoadReadFailure, "creating config directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		return mmerr.Errorf(mmerr.CodeConfigLoadReadFailure, "writing config %s: %w", path, err)
	}

	slog.Info("created default config", "path", path)
	return nil
}
