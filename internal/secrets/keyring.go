// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	"github.com/zalando/go-keyring"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

// go-keyring cannot enumerate entries, so each service keeps a JSON array of
// its key names under this reserved key.
const indexKey = "::index"

// KeyringStore implements Store on top of the OS keyring (Keychain,
// secret-service or Credential Manager).
type KeyringStore struct{}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Set(service, key, value string) error {
	if err := checkRef("set", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return docerr.Wrapf(err, docerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}

	keys, err := s.List(service)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return s.writeIndex(service, append(keys, key))
}

func (s *KeyringStore) Get(service, key string) (string, error) {
	if err := checkRef("get", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", docerr.Errorf(docerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", docerr.Wrapf(err, docerr.CodeSecretStoreFailure, "reading secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkRef("delete", service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return docerr.Errorf(docerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return docerr.Wrapf(err, docerr.CodeSecretStoreFailure, "deleting secret %s/%s", service, key)
	}

	keys, err := s.List(service)
	if err != nil {
		return err
	}
	return s.writeIndex(service, slices.DeleteFunc(keys, func(k string) bool { return k == key }))
}

func (s *KeyringStore) List(service string) ([]string, error) {
	raw, err := keyring.Get(service, indexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, docerr.Wrapf(err, docerr.CodeSecretIndexFailure, "reading key index of %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, docerr.Wrapf(err, docerr.CodeSecretIndexFailure, "decoding key index of %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) writeIndex(service string, keys []string) error {
	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("removing empty key index", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return docerr.Wrapf(err, docerr.CodeSecretIndexFailure, "encoding key index of %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return docerr.Wrapf(err, docerr.CodeSecretIndexFailure, "writing key index of %s", service)
	}
	return nil
}

func checkRef(op, service, key string) error {
	switch {
	case service == "":
		return docerr.Errorf(docerr.CodeSecretInvalidInput, "secret %s: service must not be empty", op)
	case key == "":
		return docerr.Errorf(docerr.CodeSecretInvalidInput, "secret %s: key must not be empty", op)
	case key == indexKey:
		return docerr.Errorf(docerr.CodeSecretInvalidInput, "secret %s: key %q is reserved", op, key)
	}
	return nil
}
