// Package paths resolves where zcore keeps its database.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// DataDirName is the per-project data directory.
	DataDirName = ".zcore"
	// DBFileName is the sqlite database inside the data directory.
	DBFileName = "zcore.db"
	// redirectFileName points a data directory at another one.
	redirectFileName = "redirect"
)

// ResolveDataDir normalizes a user supplied location to a data directory:
//
//   - "" -> "./.zcore"
//   - "/proj" -> "/proj/.zcore"
//   - "/proj/.zcore" -> "/proj/.zcore"
//   - "/data" containing zcore.db -> "/data"
//
// A redirect file inside the result, holding a path relative to it, is
// followed once.
func ResolveDataDir(path string) string {
	if path == "" {
		path = "."
	}
	path = filepath.Clean(path)

	if filepath.Base(path) == DataDirName {
		return followRedirect(path)
	}
	if _, err := os.Stat(filepath.Join(path, DBFileName)); err == nil {
		return followRedirect(path)
	}
	return followRedirect(filepath.Join(path, DataDirName))
}

// DBPath returns the database file for a location accepted by ResolveDataDir.
func DBPath(path string) string {
	return filepath.Join(ResolveDataDir(path), DBFileName)
}

func followRedirect(dir string) string {
	content, err := os.ReadFile(filepath.Join(dir, redirectFileName)) //nolint:gosec // redirect lives in the data dir
	if err != nil {
		return dir
	}
	target := strings.TrimSpace(string(content))
	if target == "" {
		return dir
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Clean(filepath.Join(dir, target))
}
