// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

// Package secrets keeps API keys out of config files. Config values written
// as keyring://service/key are replaced by the secret stored under that
// service and key.
package secrets

// DefaultService is the keyring service used by the CLI.
const DefaultService = "magicmatch"

// Store provides secure secret storage operations.
type Store interface {
	// Store saves a secret value under the given service and key.
	Store(service, key, value string) error

	// Retrieve fetches the secret value for the given service and key.
	// Returns a CodeSecretNotFound error if the key does not exist.
	Retrieve(service, key string) (string, error)

	// Delete removes the secret for the given service and key.
	// Returns a CodeSecretNotFound error if the key does not exist.
	Delete(service, key string) error

	// List returns all key names stored under the given service.
	List(service string) ([]string, error)
}
