package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"comicdl/internal/download"
	"comicdl/internal/logging"
)

// Result lists what CleanStale removed and what it could not.
type Result struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory with the error that kept it on disk.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes unfinished episode directories under downloadDir whose
// modification time is older than maxAge. Only the comic level is scanned.
func CleanStale(ctx context.Context, downloadDir string, maxAge time.Duration, logger *slog.Logger) Result {
	var result Result
	downloadDir = strings.TrimSpace(downloadDir)
	if downloadDir == "" || maxAge <= 0 {
		return result
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	comics, err := os.ReadDir(downloadDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: downloadDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, comic := range comics {
		if ctx.Err() != nil {
			return result
		}
		if !comic.IsDir() {
			continue
		}
		comicDir := filepath.Join(downloadDir, comic.Name())
		entries, err := os.ReadDir(comicDir)
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: comicDir, Error: err})
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || !download.IsTempDirName(entry.Name()) {
				continue
			}
			path := filepath.Join(comicDir, entry.Name())
			info, err := entry.Info()
			if err != nil {
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				continue
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.RemoveAll(path); err != nil {
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				logging.WarnWithContext(logger, "failed to remove stale episode directory", "staging_cleanup_failed",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check download_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
				continue
			}
			result.Removed = append(result.Removed, path)
			logger.Info("removed stale episode directory",
				logging.String("path", path),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
	}
	return result
}
