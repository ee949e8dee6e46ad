package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigShowRedactsCredentials(t *testing.T) {
	t.Setenv("COMICDL_ACCESS_TOKEN", "")
	t.Setenv("COMICDL_API_TOKEN", "")
	env := setupCLIConfig(t)
	env.cfg.Catalog.AccessToken = "secret-token-123"
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, env.configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "secret-token-123") {
		t.Fatalf("access token leaked:\n%s", out)
	}
	requireContains(t, out, "<redacted>")

	out, _, err = runCLI(t, env.configPath, "config", "show", "-o", "yaml")
	if err != nil {
		t.Fatalf("config show yaml: %v", err)
	}
	if strings.Contains(out, "secret-token-123") {
		t.Fatalf("access token leaked in yaml:\n%s", out)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, _, err := runCLI(t, target, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, _, err := runCLI(t, target, "config", "init", "--path", target); err == nil || !strings.Contains(err.Error(), "--overwrite") {
		t.Fatalf("expected overwrite error, got %v", err)
	}
	if _, _, err := runCLI(t, target, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	env := setupCLIConfig(t)
	out, _, err := runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	requireContains(t, out, "Configuration valid")

	broken := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(broken, []byte("[catalog]\nbase_url = \"ftp://example.com\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, broken, "config", "validate"); err == nil {
		t.Fatal("expected validation error for non-http catalog url")
	}
}

func TestConfigShowFromDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env.configPath, "config", "show", "--daemon", "-o", "json")
	if err != nil {
		t.Fatalf("config show --daemon: %v", err)
	}
	requireContains(t, out, `"downloadDir"`)
	requireContains(t, out, env.cfg.Paths.DownloadDir)
}
