package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"comicdl/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("COMICDL_ACCESS_TOKEN", "")
	t.Setenv("COMICDL_API_TOKEN", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(tempHome, "Comics"); cfg.Paths.DownloadDir != want {
		t.Fatalf("unexpected download dir: got %q want %q", cfg.Paths.DownloadDir, want)
	}
	if want := filepath.Join(tempHome, ".local", "share", "comicdl"); cfg.Paths.StateDir != want {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, want)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Download.EpisodeConcurrency != 1 {
		t.Fatalf("expected single episode concurrency by default, got %d", cfg.Download.EpisodeConcurrency)
	}
	if cfg.Download.RetryAttempts != 0 {
		t.Fatalf("expected zero retries by default, got %d", cfg.Download.RetryAttempts)
	}
	if cfg.Download.ArchiveFormat != config.ArchiveImage {
		t.Fatalf("unexpected archive format: %q", cfg.Download.ArchiveFormat)
	}
	if !cfg.Watermark.Enabled {
		t.Fatal("expected watermark pass enabled by default")
	}
	if cfg.DatabasePath() != filepath.Join(cfg.Paths.StateDir, "history.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DownloadDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "comicdl.toml")
	t.Setenv("COMICDL_ACCESS_TOKEN", "")

	type payload struct {
		Paths struct {
			DownloadDir string `toml:"download_dir"`
		} `toml:"paths"`
		Catalog struct {
			AccessToken string `toml:"access_token"`
			BaseURL     string `toml:"base_url"`
		} `toml:"catalog"`
		Download struct {
			EpisodeConcurrency int    `toml:"episode_concurrency"`
			RetryAttempts      int    `toml:"retry_attempts"`
			ArchiveFormat      string `toml:"archive_format"`
		} `toml:"download"`
	}
	custom := payload{}
	custom.Paths.DownloadDir = filepath.Join(tempDir, "comics")
	custom.Catalog.AccessToken = "abc123"
	custom.Catalog.BaseURL = "https://example.com/api/"
	custom.Download.EpisodeConcurrency = 3
	custom.Download.RetryAttempts = 2
	custom.Download.ArchiveFormat = "CBZ"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Catalog.AccessToken != "abc123" {
		t.Fatalf("expected access token from file, got %q", cfg.Catalog.AccessToken)
	}
	if cfg.Catalog.BaseURL != "https://example.com/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Catalog.BaseURL)
	}
	if cfg.Download.EpisodeConcurrency != 3 {
		t.Fatalf("expected episode concurrency 3, got %d", cfg.Download.EpisodeConcurrency)
	}
	if cfg.Download.RetryAttempts != 2 {
		t.Fatalf("expected 2 retries, got %d", cfg.Download.RetryAttempts)
	}
	if cfg.Download.ArchiveFormat != config.ArchiveCBZ {
		t.Fatalf("expected archive format normalized to cbz, got %q", cfg.Download.ArchiveFormat)
	}
	if cfg.Download.ImageConcurrency != config.Default().Download.ImageConcurrency {
		t.Fatalf("expected default image concurrency, got %d", cfg.Download.ImageConcurrency)
	}
}

func TestEnvAccessTokenOverridesFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "comicdl.toml")
	if err := os.WriteFile(configPath, []byte("[catalog]\naccess_token = \"file-token\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("COMICDL_ACCESS_TOKEN", "env-token")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Catalog.AccessToken != "env-token" {
		t.Fatalf("expected access token from env, got %q", cfg.Catalog.AccessToken)
	}
	if red := cfg.Redacted(); red.Catalog.AccessToken != "<redacted>" {
		t.Fatalf("expected redacted token, got %q", red.Catalog.AccessToken)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"episode concurrency", func(c *config.Config) { c.Download.EpisodeConcurrency = 0 }, "download.episode_concurrency"},
		{"negative retries", func(c *config.Config) { c.Download.RetryAttempts = -1 }, "download.retry_attempts"},
		{"archive format", func(c *config.Config) { c.Download.ArchiveFormat = "rar" }, "download.archive_format"},
		{"backoff order", func(c *config.Config) { c.Download.RetryMaxBackoffMS = 10 }, "retry_max_backoff_ms"},
		{"watermark command", func(c *config.Config) { c.Watermark.Command = []string{"tool", "{input}"} }, "watermark.command"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"catalog url", func(c *config.Config) { c.Catalog.BaseURL = "ftp://x" }, "catalog.base_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DownloadDir = t.TempDir()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error to mention %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample to load cleanly, exists=%v err=%v", exists, err)
	}
}
