package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// LogsEnv enables dumping captured logs at the end of each test.
const LogsEnv = "VLGTRACE_TEST_LOGS"

// Workspace creates a temporary directory populated with files. Paths are
// relative to the workspace and may contain subdirectories.
func Workspace(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// Script writes an executable shell script into dir and returns its path.
func Script(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

// DumpLogs prints buf when LogsEnv is "true".
func DumpLogs(t *testing.T, buf *SafeBuffer) {
	t.Helper()
	t.Cleanup(func() {
		if os.Getenv(LogsEnv) == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), buf.String())
		}
	})
}
