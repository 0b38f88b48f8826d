// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package secrets

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// URI scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// KeyringURI builds the keyring:// reference for service and key.
func KeyringURI(service, key string) string {
	return keyringScheme + service + "/" + key
}

// ParseKeyringURI extracts service and key from a keyring://service/key URI.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", mmerr.Errorf(mmerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	service, key, ok := strings.Cut(strings.TrimPrefix(uri, keyringScheme), "/")
	if !ok || service == "" || key == "" {
		return "", "", mmerr.Errorf(mmerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}

	return service, key, nil
}

// ResolveKeyringURI resolves a single keyring:// URI to its secret value.
// Returns the original value unchanged if it is not a keyring URI.
func ResolveKeyringURI(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}

	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", mmerr.Wrapf(err, mmerr.CodeSecretResolveFailure, "resolving keyring URI %q", value)
	}

	return secret, nil
}

// ResolveViperSecrets replaces every keyring:// string value in v with the
// referenced secret. All keys are attempted; the returned error names every
// key that could not be resolved.
func ResolveViperSecrets(v *viper.Viper, store Store) error {
	var errs []error
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsKeyringURI(val) {
			continue
		}

		resolved, err := ResolveKeyringURI(store, val)
		if err != nil {
			errs = append(errs, mmerr.Wrapf(err, mmerr.CodeSecretResolveFailure, "config key %s", key))
			continue
		}

		v.Set(key, resolved)
	}

	if len(errs) > 0 {
		return mmerr.Wrapf(errors.Join(errs...), mmerr.CodeSecretResolveFailure, "resolving config secrets")
	}
	return nil
}
