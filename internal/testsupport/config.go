package testsupport

import (
	"path/filepath"
	"testing"

	"comicdl/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DownloadDir = filepath.Join(base, "comics")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Catalog.BaseURL = "http://127.0.0.1:0"
	cfgVal.Download.RetryBackoffMS = 1
	cfgVal.Download.RetryMaxBackoffMS = 4
	cfgVal.Download.SpeedIntervalMS = 10
	cfgVal.Workflow.QueuePollInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCatalog points the catalog client at baseURL, typically an httptest server.
func WithCatalog(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.BaseURL = baseURL
	}
}

// WithConcurrency overrides the episode and image concurrency limits.
func WithConcurrency(episodes, images int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.EpisodeConcurrency = episodes
		b.cfg.Download.ImageConcurrency = images
	}
}

// WithArchiveFormat overrides download.archive_format.
func WithArchiveFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.ArchiveFormat = format
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DownloadDir)
}
