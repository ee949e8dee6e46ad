package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCatalog()
	c.normalizeDownload()
	c.normalizeWatermark()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv(apiTokenEnv); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeCatalog() {
	if value, ok := os.LookupEnv(accessTokenEnv); ok && strings.TrimSpace(value) != "" {
		c.Catalog.AccessToken = value
	}
	c.Catalog.AccessToken = strings.TrimSpace(c.Catalog.AccessToken)
	c.Catalog.BaseURL = strings.TrimRight(strings.TrimSpace(c.Catalog.BaseURL), "/")
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = defaultCatalogBaseURL
	}
	c.Catalog.UserAgent = strings.TrimSpace(c.Catalog.UserAgent)
	if c.Catalog.UserAgent == "" {
		c.Catalog.UserAgent = defaultCatalogUserAgent
	}
	if c.Catalog.RequestTimeout == 0 {
		c.Catalog.RequestTimeout = defaultCatalogRequestTimeout
	}
}

func (c *Config) normalizeDownload() {
	c.Download.ArchiveFormat = strings.ToLower(strings.TrimSpace(c.Download.ArchiveFormat))
	if c.Download.ArchiveFormat == "" {
		c.Download.ArchiveFormat = ArchiveImage
	}
	if c.Download.SpeedIntervalMS == 0 {
		c.Download.SpeedIntervalMS = defaultSpeedIntervalMS
	}
	if c.Download.RetryBackoffMS == 0 {
		c.Download.RetryBackoffMS = defaultRetryBackoffMS
	}
	if c.Download.RetryMaxBackoffMS == 0 {
		c.Download.RetryMaxBackoffMS = defaultRetryMaxBackoffMS
	}
}

func (c *Config) normalizeWatermark() {
	if len(c.Watermark.Command) == 0 {
		return
	}
	args := make([]string, 0, len(c.Watermark.Command))
	for _, arg := range c.Watermark.Command {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Watermark.Command = args
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
