package config

const (
	defaultConfigPath            = "~/.config/comicdl/config.toml"
	defaultDownloadDir           = "~/Comics"
	defaultStateDir              = "~/.local/share/comicdl"
	defaultLogDir                = "~/.local/share/comicdl/logs"
	defaultLogRetentionDays      = 30
	defaultAPIBind               = "127.0.0.1:7488"
	defaultCatalogBaseURL        = "https://manga.bilibili.com/twirp"
	defaultCatalogUserAgent      = "comicdl/dev"
	defaultCatalogRequestTimeout = 15
	defaultEpisodeConcurrency    = 1
	defaultImageConcurrency      = 4
	defaultImageTimeout          = 60
	defaultRetryBackoffMS        = 500
	defaultRetryMaxBackoffMS     = 8000
	defaultSpeedIntervalMS       = 1000
	defaultStaleTempDays         = 14
	defaultWatermarkConcurrency  = 4
	defaultNotifyRequestTimeout  = 10
	defaultQueuePollInterval     = 5
	defaultErrorRetryInterval    = 10
	defaultHeartbeatInterval     = 15
	defaultHeartbeatTimeout      = 120
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	accessTokenEnv               = "COMICDL_ACCESS_TOKEN"
	apiTokenEnv                  = "COMICDL_API_TOKEN"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Catalog: Catalog{
			BaseURL:        defaultCatalogBaseURL,
			UserAgent:      defaultCatalogUserAgent,
			RequestTimeout: defaultCatalogRequestTimeout,
		},
		Download: Download{
			EpisodeConcurrency: defaultEpisodeConcurrency,
			ImageConcurrency:   defaultImageConcurrency,
			ImageTimeout:       defaultImageTimeout,
			RetryBackoffMS:     defaultRetryBackoffMS,
			RetryMaxBackoffMS:  defaultRetryMaxBackoffMS,
			SpeedIntervalMS:    defaultSpeedIntervalMS,
			ArchiveFormat:      ArchiveImage,
			StaleTempDays:      defaultStaleTempDays,
		},
		Watermark: Watermark{
			Enabled:     true,
			Concurrency: defaultWatermarkConcurrency,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Batch:          true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
