// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

//go:build windows

package config

import "log/slog"

// WarnInsecurePermissions is a no-op on Windows, which uses ACLs rather
// than mode bits.
func WarnInsecurePermissions(paths ...string) []string {
	slog.Debug("permission check not supported on windows", "paths", paths)
	return nil
}
