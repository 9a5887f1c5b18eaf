// Package config handles loading taskdash.toml configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/amonks/taskdash/internal/paths"
	internalstrings "github.com/amonks/taskdash/internal/strings"
	"github.com/ilyakaznacheev/cleanenv"
)

// ProjectFile is the name of the per-directory config file.
const ProjectFile = "taskdash.toml"

// Config represents the taskdash.toml configuration file.
type Config struct {
	API       API       `toml:"api"`
	Dashboard Dashboard `toml:"dashboard"`
	Downloads Downloads `toml:"downloads"`
}

// API locates the remote todo service.
type API struct {
	// URL is the base address, including any path prefix such as /api.
	URL string `toml:"url" env:"TASKDASH_API_URL" env-default:"http://localhost:8000/api"`

	// Timeout bounds a single request.
	Timeout time.Duration `toml:"timeout" env:"TASKDASH_API_TIMEOUT" env-default:"30s"`
}

// Dashboard configures `taskdash serve`.
type Dashboard struct {
	Addr string `toml:"addr" env:"TASKDASH_DASHBOARD_ADDR" env-default:"127.0.0.1:8080"`

	// SecureCookies marks the auth cookie https-only.
	SecureCookies bool `toml:"secure-cookies" env:"TASKDASH_SECURE_COOKIES"`
}

// Downloads configures where attachments are saved.
type Downloads struct {
	Dir string `toml:"dir" env:"TASKDASH_DOWNLOADS_DIR"`
}

// Load loads configuration from dir and the global config file, then
// applies TASKDASH_* environment overrides and defaults. Missing files are
// not an error.
func Load(dir string) (*Config, error) {
	globalPath, err := globalConfigPath()
	if err != nil {
		return nil, err
	}

	globalCfg, globalMeta, err := loadConfigFile(globalPath)
	if err != nil {
		return nil, err
	}

	projectCfg, projectMeta, err := loadConfigFile(filepath.Join(dir, ProjectFile))
	if err != nil {
		return nil, err
	}

	merged := mergeConfigs(globalCfg, projectCfg, globalMeta, projectMeta)
	if err := cleanenv.ReadEnv(merged); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := merged.finish(); err != nil {
		return nil, err
	}
	return merged, nil
}

func globalConfigPath() (string, error) {
	dir, err := paths.DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func loadConfigFile(path string) (*Config, toml.MetaData, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, toml.MetaData{}, nil
	}
	if err != nil {
		return nil, toml.MetaData{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, toml.MetaData{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return &cfg, meta, nil
}

func mergeConfigs(globalCfg, projectCfg *Config, globalMeta, projectMeta toml.MetaData) *Config {
	if globalCfg == nil {
		globalCfg = &Config{}
	}
	if projectCfg == nil {
		projectCfg = &Config{}
	}

	merged := Config{}
	merged.API.URL = mergeString(projectMeta.IsDefined("api", "url"), projectCfg.API.URL, globalCfg.API.URL)
	merged.Dashboard.Addr = mergeString(projectMeta.IsDefined("dashboard", "addr"), projectCfg.Dashboard.Addr, globalCfg.Dashboard.Addr)
	merged.Downloads.Dir = mergeString(projectMeta.IsDefined("downloads", "dir"), projectCfg.Downloads.Dir, globalCfg.Downloads.Dir)

	merged.API.Timeout = globalCfg.API.Timeout
	if projectMeta.IsDefined("api", "timeout") {
		merged.API.Timeout = projectCfg.API.Timeout
	}
	if projectMeta.IsDefined("dashboard", "secure-cookies") {
		merged.Dashboard.SecureCookies = projectCfg.Dashboard.SecureCookies
	} else if globalMeta.IsDefined("dashboard", "secure-cookies") {
		merged.Dashboard.SecureCookies = globalCfg.Dashboard.SecureCookies
	}

	return &merged
}

func mergeString(projectDefined bool, projectValue, globalValue string) string {
	value := globalValue
	if projectDefined {
		value = projectValue
	}
	return strings.TrimSpace(value)
}

func (c *Config) finish() error {
	c.API.URL = internalstrings.TrimTrailingSlash(strings.TrimSpace(c.API.URL))
	if !strings.HasPrefix(c.API.URL, "http://") && !strings.HasPrefix(c.API.URL, "https://") {
		return fmt.Errorf("api.url must be an http or https URL, got %q", c.API.URL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative, got %s", c.API.Timeout)
	}
	if c.Downloads.Dir == "" {
		dir, err := paths.DefaultDownloadsDir()
		if err != nil {
			return err
		}
		c.Downloads.Dir = dir
	}
	return nil
}

// Usage describes the environment variables Load reads.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
