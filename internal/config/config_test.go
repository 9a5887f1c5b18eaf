package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amonks/taskdash/internal/config"
	"github.com/amonks/taskdash/internal/testsupport"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func globalConfig(home string) string {
	return filepath.Join(home, ".config", "taskdash", "config.toml")
}

func TestLoad_NotFound(t *testing.T) {
	home := testsupport.SetupTestHome(t)
	tmpDir := t.TempDir()

	cfg, err := config.Load(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.API.URL != "http://localhost:8000/api" {
		t.Errorf("expected default api url, got %q", cfg.API.URL)
	}
	if cfg.API.Timeout != 30*time.Second {
		t.Errorf("expected default timeout, got %s", cfg.API.Timeout)
	}
	if cfg.Dashboard.Addr != "127.0.0.1:8080" {
		t.Errorf("expected default addr, got %q", cfg.Dashboard.Addr)
	}
	if cfg.Dashboard.SecureCookies {
		t.Error("expected insecure cookies by default")
	}
	if cfg.Downloads.Dir != filepath.Join(home, "Downloads") {
		t.Errorf("expected downloads under home, got %q", cfg.Downloads.Dir)
	}
}

func TestLoad_Full(t *testing.T) {
	testsupport.SetupTestHome(t)
	tmpDir := t.TempDir()

	writeFile(t, filepath.Join(tmpDir, config.ProjectFile), `
[api]
url = "https://tasks.example.com/api/"
timeout = "5s"

[dashboard]
addr = ":9000"
secure-cookies = true

[downloads]
dir = "/tmp/pdfs"
`)

	cfg, err := config.Load(tmpDir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.API.URL != "https://tasks.example.com/api" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.API.URL)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.API.Timeout)
	}
	if cfg.Dashboard.Addr != ":9000" {
		t.Errorf("expected :9000, got %q", cfg.Dashboard.Addr)
	}
	if !cfg.Dashboard.SecureCookies {
		t.Error("expected secure cookies")
	}
	if cfg.Downloads.Dir != "/tmp/pdfs" {
		t.Errorf("expected /tmp/pdfs, got %q", cfg.Downloads.Dir)
	}
}

func TestLoad_ProjectOverridesGlobal(t *testing.T) {
	home := testsupport.SetupTestHome(t)
	tmpDir := t.TempDir()

	writeFile(t, globalConfig(home), `
[api]
url = "https://global.example.com/api"

[dashboard]
addr = ":7000"
secure-cookies = true
`)
	writeFile(t, filepath.Join(tmpDir, config.ProjectFile), `
[api]
url = "https://project.example.com/api"

[dashboard]
secure-cookies = false
`)

	cfg, err := config.Load(tmpDir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.API.URL != "https://project.example.com/api" {
		t.Errorf("expected project url, got %q", cfg.API.URL)
	}
	if cfg.Dashboard.Addr != ":7000" {
		t.Errorf("expected global addr, got %q", cfg.Dashboard.Addr)
	}
	if cfg.Dashboard.SecureCookies {
		t.Error("expected project to turn secure cookies off")
	}
}

func TestLoad_GlobalOnly(t *testing.T) {
	home := testsupport.SetupTestHome(t)
	tmpDir := t.TempDir()

	writeFile(t, globalConfig(home), `
[dashboard]
secure-cookies = true
`)

	cfg, err := config.Load(tmpDir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if !cfg.Dashboard.SecureCookies {
		t.Error("expected global secure cookies")
	}
}

func TestLoad_EnvironmentOverridesFiles(t *testing.T) {
	testsupport.SetupTestHome(t)
	tmpDir := t.TempDir()

	writeFile(t, filepath.Join(tmpDir, config.ProjectFile), `
[api]
url = "https://project.example.com/api"
`)
	t.Setenv("TASKDASH_API_URL", "http://127.0.0.1:9999/")
	t.Setenv("TASKDASH_API_TIMEOUT", "2s")

	cfg, err := config.Load(tmpDir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.API.URL != "http://127.0.0.1:9999" {
		t.Errorf("expected env url, got %q", cfg.API.URL)
	}
	if cfg.API.Timeout != 2*time.Second {
		t.Errorf("expected env timeout, got %s", cfg.API.Timeout)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	testsupport.SetupTestHome(t)
	tmpDir := t.TempDir()

	writeFile(t, filepath.Join(tmpDir, config.ProjectFile), "[api\nurl = ")

	_, err := config.Load(tmpDir)
	if err == nil {
		t.Fatal("expected error for invalid TOML")
	}
	if !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_RejectsNonHTTPURL(t *testing.T) {
	testsupport.SetupTestHome(t)
	tmpDir := t.TempDir()

	writeFile(t, filepath.Join(tmpDir, config.ProjectFile), `
[api]
url = "ftp://example.com"
`)

	_, err := config.Load(tmpDir)
	if err == nil || !strings.Contains(err.Error(), "api.url") {
		t.Fatalf("expected api.url error, got %v", err)
	}
}

func TestUsage_ListsEnvironment(t *testing.T) {
	usage := config.Usage()
	for _, name := range []string{"TASKDASH_API_URL", "TASKDASH_DASHBOARD_ADDR", "TASKDASH_DOWNLOADS_DIR"} {
		if !strings.Contains(usage, name) {
			t.Errorf("expected %s in usage:\n%s", name, usage)
		}
	}
}
