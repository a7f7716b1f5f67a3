// pathsafe.go - shared manifest/resource path sanitization
//
// License: GPLv3 or later

package main

import (
	"fmt"
	"path/filepath"
	"strings"
)

// sanitizeManifestPath resolves a manifest- or script-supplied relative
// path against baseDir, rejecting absolute paths and any path that escapes
// baseDir.
func sanitizeManifestPath(baseDir, path string) (string, error) {
	if filepath.IsAbs(path) || strings.Contains(path, "..") {
		return "", fmt.Errorf("path escapes sandbox: %q", path)
	}
	full := filepath.Join(baseDir, path)
	rel, err := filepath.Rel(baseDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path escapes sandbox: %q", path)
	}
	return full, nil
}
