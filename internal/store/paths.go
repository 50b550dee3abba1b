package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tarmacbot/tarmac/internal/pathutil"
)

// ResolveDataPath resolves the configured store path. If empty, it falls
// back to ~/.tarmac/data.
func ResolveDataPath(configured string) (string, error) {
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return pathutil.Expand(trimmed)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tarmac", "data"), nil
}

func actorsPath(base string) string {
	return filepath.Join(base, "actors.json")
}

func cooldownsPath(base string) string {
	return filepath.Join(base, "cooldowns.json")
}

func deferredPath(base string) string {
	return filepath.Join(base, "deferred.json")
}

// LockPath returns the lock file path for a data directory.
func LockPath(base string) string {
	return filepath.Join(base, "store.lock")
}
