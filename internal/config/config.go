package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Archive formats accepted by download.archive_format.
const (
	ArchiveImage = "image"
	ArchiveCBZ   = "cbz"
	ArchiveZip   = "zip"
)

// Paths contains directory and bind address configuration.
type Paths struct {
	DownloadDir string `toml:"download_dir"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Catalog contains connection settings for the comic catalog API.
type Catalog struct {
	BaseURL        string `toml:"base_url"`
	AccessToken    string `toml:"access_token"`
	UserAgent      string `toml:"user_agent"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Download contains scheduling and retry settings for episode downloads.
type Download struct {
	EpisodeConcurrency int    `toml:"episode_concurrency"`
	ImageConcurrency   int    `toml:"image_concurrency"`
	ImageTimeout       int    `toml:"image_timeout"`
	RetryAttempts      int    `toml:"retry_attempts"`
	RetryBackoffMS     int    `toml:"retry_backoff_ms"`
	RetryMaxBackoffMS  int    `toml:"retry_max_backoff_ms"`
	SpeedIntervalMS    int    `toml:"speed_interval_ms"`
	ArchiveFormat      string `toml:"archive_format"`
	StaleTempDays      int    `toml:"stale_temp_days"`
}

// Watermark contains settings for the post-download watermark pass.
type Watermark struct {
	Enabled      bool     `toml:"enabled"`
	Concurrency  int      `toml:"concurrency"`
	CropBottomPx int      `toml:"crop_bottom_px"`
	Command      []string `toml:"command"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Batch          bool   `toml:"batch"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains configuration for the post-processing lane.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for comicdl.
//
// Configuration sections by subsystem:
//   - Paths: download, state and log directories plus the API bind address
//   - Catalog: comic catalog endpoint and credentials
//   - Download: episode/image concurrency, retry policy, archive format
//   - Watermark: post-download watermark removal
//   - Notifications: ntfy push notification settings
//   - Workflow: post-processing lane polling
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Catalog       Catalog       `toml:"catalog"`
	Download      Download      `toml:"download"`
	Watermark     Watermark     `toml:"watermark"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("comicdl.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DownloadDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath is the episode history database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath is the single-instance lock file guarding the daemon.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "comicdl.lock")
}

// PIDPath records the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "comicdl.pid")
}

// SocketPath is the default IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "comicdl.sock")
}

// RetryBackoff returns the first retry delay for a failed image fetch.
func (d Download) RetryBackoff() time.Duration {
	return time.Duration(d.RetryBackoffMS) * time.Millisecond
}

// RetryMaxBackoff caps the exponential retry delay.
func (d Download) RetryMaxBackoff() time.Duration {
	return time.Duration(d.RetryMaxBackoffMS) * time.Millisecond
}

// SpeedInterval is the cadence of throughput samples.
func (d Download) SpeedInterval() time.Duration {
	return time.Duration(d.SpeedIntervalMS) * time.Millisecond
}

// ImageFetchTimeout bounds a single image request.
func (d Download) ImageFetchTimeout() time.Duration {
	return time.Duration(d.ImageTimeout) * time.Second
}

// Timeout returns the catalog HTTP timeout.
func (c Catalog) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Redacted returns a copy with credentials blanked, safe to show to clients.
func (c Config) Redacted() Config {
	out := c
	if out.Catalog.AccessToken != "" {
		out.Catalog.AccessToken = "<redacted>"
	}
	if out.Paths.APIToken != "" {
		out.Paths.APIToken = "<redacted>"
	}
	out.Watermark.Command = append([]string(nil), c.Watermark.Command...)
	return out
}
