// Package testutil provides utilities for testing ghri in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SetupTestEnv points every ghri environment variable at a fresh temp
// directory so tests never touch the user's real installation root,
// config, or token. It returns the isolated root directory; cleanup is
// handled by t.TempDir and t.Setenv.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	root := filepath.Join(tmpDir, "root")

	t.Setenv("GHRI_ROOT", root)
	t.Setenv("GHRI_API_URL", "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))

	for _, dir := range []string{root, filepath.Join(tmpDir, "config", "ghri")} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}
	return root
}
