// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

const groupOrOtherRead fs.FileMode = 0o044

// WarnInsecurePermissions logs a warning for every existing file in paths
// that group or other users can read, and returns those paths. Config files
// may hold API keys and the corpus database holds document text. Empty
// paths and missing files are skipped.
func WarnInsecurePermissions(paths ...string) []string {
	var exposed []string
	for _, path := range paths {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			slog.Debug("permission check skipped", "path", path, "error", err)
			continue
		}
		if info.Mode().Perm()&groupOrOtherRead == 0 {
			continue
		}
		slog.Warn("file is readable by other users",
			"path", path,
			"mode", info.Mode(),
			"recommended", "0600")
		exposed = append(exposed, path)
	}
	return exposed
}
