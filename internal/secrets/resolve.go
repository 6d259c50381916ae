// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package secrets

import (
	"errors"
	"sort"
	"strings"

	"github.com/spf13/viper"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value is a keyring:// reference.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringURI splits keyring://service/key. Everything after the first
// slash belongs to the key.
func ParseKeyringURI(uri string) (service, key string, err error) {
	rest, ok := strings.CutPrefix(uri, keyringScheme)
	if !ok {
		return "", "", docerr.Errorf(docerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}
	service, key, ok = strings.Cut(rest, "/")
	if !ok || service == "" || key == "" {
		return "", "", docerr.Errorf(docerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// Resolve returns value itself, or the secret it references when it is a
// keyring URI.
func Resolve(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}
	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}
	secret, err := store.Get(service, key)
	if err != nil {
		return "", docerr.Wrapf(err, docerr.CodeSecretResolveFailure, "resolving %q", value)
	}
	return secret, nil
}

// ResolveConfig replaces every keyring URI held by v with its secret. All
// failures are reported together, naming the config key and the URI.
func ResolveConfig(v *viper.Viper, store Store) error {
	keys := v.AllKeys()
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		val := v.GetString(k)
		if !IsKeyringURI(val) {
			continue
		}
		secret, err := Resolve(store, val)
		if err != nil {
			errs = append(errs, docerr.Wrapf(err, docerr.CodeSecretResolveFailure, "%s = %s", k, val))
			continue
		}
		v.Set(k, secret)
	}
	if len(errs) > 0 {
		return docerr.Wrap(errors.Join(errs...), docerr.CodeSecretResolveFailure, "unresolved keyring references")
	}
	return nil
}
