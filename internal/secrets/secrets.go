// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

// Package secrets keeps provider API keys out of configuration files.
//
// Keys live in the OS keyring under the "docent" service and are referenced
// from docent.yaml as keyring://docent/<provider>-api-key.
package secrets

// Service is the keyring service every docent secret is filed under.
const Service = "docent"

// Store is a service-scoped secret store.
type Store interface {
	// Set saves value under key, replacing any previous value.
	Set(service, key, value string) error

	// Get returns the value under key, or a CodeSecretNotFound error.
	Get(service, key string) (string, error)

	// Delete removes key, or returns a CodeSecretNotFound error.
	Delete(service, key string) error

	// List returns the keys stored under service in insertion order.
	List(service string) ([]string, error)
}

// ProviderKey is the keyring key holding provider's API key.
func ProviderKey(provider string) string {
	return provider + "-api-key"
}

// ProviderURI is the config value that points at provider's API key.
func ProviderURI(provider string) string {
	return keyringScheme + Service + "/" + ProviderKey(provider)
}
