package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// EnsureHomeDirs creates the default state and config directories under homeDir.
func EnsureHomeDirs(homeDir string) error {
	if err := os.MkdirAll(filepath.Join(homeDir, ".local", "state", "taskdash"), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(homeDir, ".config", "taskdash"), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return nil
}

// SetupTestHome creates a temp home directory and a private runtime dir,
// and points HOME and XDG_RUNTIME_DIR at them.
func SetupTestHome(t testing.TB) string {
	t.Helper()

	homeDir := t.TempDir()
	if err := EnsureHomeDirs(homeDir); err != nil {
		t.Fatalf("setup home dir: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("XDG_RUNTIME_DIR", filepath.Join(homeDir, "run"))
	for _, name := range []string{"TASKDASH_API_URL", "TASKDASH_API_TIMEOUT", "TASKDASH_DASHBOARD_ADDR", "TASKDASH_SECURE_COOKIES", "TASKDASH_DOWNLOADS_DIR"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	return homeDir
}
