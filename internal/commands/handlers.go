package commands

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"comicdl/internal/archive"
	"comicdl/internal/download"
	"comicdl/internal/logging"
	"comicdl/internal/services"
)

// DownloadEpisodesArgs is the argument of download_episodes.
type DownloadEpisodesArgs struct {
	Episodes []download.EpisodeTask `json:"episodes"`
}

// PathArgs is the argument of show_path_in_file_manager.
type PathArgs struct {
	Path string `json:"path"`
}

// GetComicArgs is the argument of get_comic.
type GetComicArgs struct {
	ComicID int64 `json:"comicId"`
}

// SearchArgs is the argument of search.
type SearchArgs struct {
	Keyword string `json:"keyword"`
	PageNum int    `json:"pageNum"`
}

// RemoveWatermarkArgs is the argument of remove_watermark.
type RemoveWatermarkArgs struct {
	DirPath string `json:"dirPath"`
}

// ConfigView is the client-visible subset of the effective configuration.
type ConfigView struct {
	DownloadDir        string   `json:"downloadDir"`
	ArchiveFormat      string   `json:"archiveFormat"`
	EpisodeConcurrency int      `json:"episodeConcurrency"`
	ImageConcurrency   int      `json:"imageConcurrency"`
	RetryAttempts      int      `json:"retryAttempts"`
	CatalogBaseURL     string   `json:"catalogBaseUrl"`
	AccessToken        string   `json:"accessToken"`
	WatermarkEnabled   bool     `json:"watermarkEnabled"`
	WatermarkCommand   []string `json:"watermarkCommand,omitempty"`
	CropBottomPx       int      `json:"cropBottomPx"`
	APIBind            string   `json:"apiBind"`
}

func (d *Dispatcher) downloadEpisodes(ctx context.Context, raw json.RawMessage) (any, error) {
	var args DownloadEpisodesArgs
	if err := decodeArgs(DownloadEpisodes, raw, &args); err != nil {
		return nil, err
	}
	if d.deps.Downloads == nil {
		return nil, missing(DownloadEpisodes, "downloader")
	}
	if err := d.deps.Downloads.Submit(ctx, args.Episodes); err != nil {
		return nil, err
	}
	return nil, nil
}

func (d *Dispatcher) showPathInFileManager(ctx context.Context, raw json.RawMessage) (any, error) {
	var args PathArgs
	if err := decodeArgs(ShowPathInFileManager, raw, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Path) == "" {
		return nil, services.Wrap(services.ErrValidation, "commands", ShowPathInFileManager.String(), "path is required", nil)
	}
	if d.deps.Opener == nil {
		return nil, missing(ShowPathInFileManager, "file manager")
	}
	return nil, d.deps.Opener.Reveal(ctx, args.Path)
}

// getComic fetches comic details and marks the episodes already finished,
// either per the history store or because their directory or archive exists.
func (d *Dispatcher) getComic(ctx context.Context, raw json.RawMessage) (any, error) {
	var args GetComicArgs
	if err := decodeArgs(GetComic, raw, &args); err != nil {
		return nil, err
	}
	if d.deps.Catalog == nil {
		return nil, missing(GetComic, "catalog")
	}
	comic, err := d.deps.Catalog.Comic(ctx, args.ComicID)
	if err != nil {
		return nil, err
	}

	var finished map[int64]struct{}
	if d.deps.History != nil {
		finished, err = d.deps.History.FinishedEpisodeIDs(ctx, comic.ID)
		if err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, d.logger), "history lookup failed", "history_read_failed",
				logging.Int64("comic_id", comic.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "downloaded flags rely on the filesystem only"),
			)
		}
	}
	downloadDir := ""
	if d.deps.Config != nil {
		downloadDir = d.deps.Config.Paths.DownloadDir
	}
	for i := range comic.Episodes {
		ep := &comic.Episodes[i]
		if _, ok := finished[ep.EpisodeID]; ok {
			ep.IsDownloaded = true
			continue
		}
		if downloadDir == "" {
			continue
		}
		task := download.EpisodeTask{EpisodeID: ep.EpisodeID, EpisodeTitle: ep.EpisodeTitle, MangaID: ep.MangaID, MangaTitle: ep.MangaTitle}
		_, ep.IsDownloaded = archive.Existing(download.EpisodeDir(downloadDir, task))
	}
	return comic, nil
}

func (d *Dispatcher) search(ctx context.Context, raw json.RawMessage) (any, error) {
	var args SearchArgs
	if err := decodeArgs(Search, raw, &args); err != nil {
		return nil, err
	}
	if d.deps.Catalog == nil {
		return nil, missing(Search, "catalog")
	}
	return d.deps.Catalog.Search(ctx, args.Keyword, args.PageNum)
}

// removeWatermark validates the directory and runs the pipeline in the
// background; progress arrives as watermark events.
func (d *Dispatcher) removeWatermark(ctx context.Context, raw json.RawMessage) (any, error) {
	var args RemoveWatermarkArgs
	if err := decodeArgs(RemoveWatermark, raw, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.DirPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "commands", RemoveWatermark.String(), "dirPath is required", nil)
	}
	if d.deps.Watermark == nil {
		return nil, missing(RemoveWatermark, "watermark pipeline")
	}
	info, err := os.Stat(args.DirPath)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "commands", RemoveWatermark.String(), args.DirPath, err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "commands", RemoveWatermark.String(), args.DirPath+" is not a directory", nil)
	}
	runCtx := services.WithStage(d.bgCtx, "watermark")
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		runCtx = services.WithRequestID(runCtx, rid)
	}
	logger := logging.WithContext(runCtx, d.logger)
	started := d.goBackground(func() {
		summary, err := d.deps.Watermark.Run(runCtx, args.DirPath)
		if err != nil {
			logging.WarnWithContext(logger, "watermark removal failed", "watermark_failed",
				logging.String("dir", args.DirPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the directory exists and the watermark command works"),
			)
			return
		}
		logger.Info("watermark removal finished",
			logging.String("dir", args.DirPath),
			logging.Int("succeeded", summary.Succeeded),
			logging.Int("failed", summary.Failed),
		)
	})
	if !started {
		return nil, services.Wrap(services.ErrCancelled, "commands", RemoveWatermark.String(), "shutting down", nil)
	}
	return nil, nil
}

func (d *Dispatcher) getConfig(context.Context, json.RawMessage) (any, error) {
	if d.deps.Config == nil {
		return nil, missing(GetConfig, "configuration")
	}
	cfg := d.deps.Config.Redacted()
	return ConfigView{
		DownloadDir:        cfg.Paths.DownloadDir,
		ArchiveFormat:      cfg.Download.ArchiveFormat,
		EpisodeConcurrency: cfg.Download.EpisodeConcurrency,
		ImageConcurrency:   cfg.Download.ImageConcurrency,
		RetryAttempts:      cfg.Download.RetryAttempts,
		CatalogBaseURL:     cfg.Catalog.BaseURL,
		AccessToken:        cfg.Catalog.AccessToken,
		WatermarkEnabled:   cfg.Watermark.Enabled,
		WatermarkCommand:   cfg.Watermark.Command,
		CropBottomPx:       cfg.Watermark.CropBottomPx,
		APIBind:            cfg.Paths.APIBind,
	}, nil
}
