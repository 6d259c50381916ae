// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

//go:embed docent.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/docent/docent.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", docerr.Wrap(err, docerr.CodeConfigLoadReadFailure, "resolving home directory")
	}
	return filepath.Join(home, ".config", "docent", "docent.yaml"), nil
}

// BootstrapConfig writes the default commented config to the default path
// unless a file is already there. It returns the path written, or "" when
// nothing was written; failures are logged and skipped.
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}
	written, err := WriteConfig(cfgPath, DefaultConfigYAML, false)
	if err != nil {
		slog.Debug("skipping config bootstrap", "path", cfgPath, "error", err)
		return ""
	}
	if !written {
		return ""
	}
	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}

// WriteConfig writes data to path with owner-only permissions, creating the
// parent directory. An existing file is kept unless overwrite is set; the
// result reports whether the file was written.
func WriteConfig(path string, data []byte, overwrite bool) (bool, error) {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, docerr.Wrap(err, docerr.CodeConfigLoadReadFailure, "creating config directory",
			docerr.FieldPath(filepath.Dir(path)))
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return false, docerr.Wrap(err, docerr.CodeConfigLoadReadFailure, "writing config", docerr.FieldPath(path))
	}
	return true, nil
}
