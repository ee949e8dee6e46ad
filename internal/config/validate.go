package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateWatermark(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be >= 0")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		return errors.New("paths.download_dir must be set")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if !strings.HasPrefix(c.Catalog.BaseURL, "http://") && !strings.HasPrefix(c.Catalog.BaseURL, "https://") {
		return fmt.Errorf("catalog.base_url must be an http(s) URL, got %q", c.Catalog.BaseURL)
	}
	if c.Catalog.RequestTimeout < 0 {
		return errors.New("catalog.request_timeout must be >= 0")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if err := ensurePositiveMap(map[string]int{
		"download.episode_concurrency":  c.Download.EpisodeConcurrency,
		"download.image_concurrency":    c.Download.ImageConcurrency,
		"download.speed_interval_ms":    c.Download.SpeedIntervalMS,
		"download.retry_backoff_ms":     c.Download.RetryBackoffMS,
		"download.retry_max_backoff_ms": c.Download.RetryMaxBackoffMS,
	}); err != nil {
		return err
	}
	if c.Download.RetryAttempts < 0 {
		return errors.New("download.retry_attempts must be >= 0")
	}
	if c.Download.StaleTempDays < 0 {
		return errors.New("download.stale_temp_days must be >= 0")
	}
	if c.Download.ImageTimeout < 0 {
		return errors.New("download.image_timeout must be >= 0")
	}
	if c.Download.RetryMaxBackoffMS < c.Download.RetryBackoffMS {
		return errors.New("download.retry_max_backoff_ms must be >= download.retry_backoff_ms")
	}
	switch c.Download.ArchiveFormat {
	case ArchiveImage, ArchiveCBZ, ArchiveZip:
	default:
		return fmt.Errorf("download.archive_format must be one of image, cbz, zip (got %q)", c.Download.ArchiveFormat)
	}
	return nil
}

func (c *Config) validateWatermark() error {
	if c.Watermark.Concurrency <= 0 {
		return errors.New("watermark.concurrency must be positive")
	}
	if c.Watermark.CropBottomPx < 0 {
		return errors.New("watermark.crop_bottom_px must be >= 0")
	}
	if len(c.Watermark.Command) > 0 {
		joined := strings.Join(c.Watermark.Command, " ")
		if !strings.Contains(joined, "{input}") || !strings.Contains(joined, "{output}") {
			return errors.New("watermark.command must reference both {input} and {output}")
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.heartbeat_interval":   c.Workflow.HeartbeatInterval,
		"workflow.heartbeat_timeout":    c.Workflow.HeartbeatTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
