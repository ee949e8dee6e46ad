package download

import (
	"fmt"
	"path/filepath"
	"strings"

	"comicdl/internal/queue"
	"comicdl/internal/textutil"
)

// tempPrefix marks a directory whose images are still being fetched.
const tempPrefix = ".downloading-"

// IsTempDirName reports whether name is an unfinished episode directory.
func IsTempDirName(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}

// EpisodeTask is one episode requested for download.
type EpisodeTask struct {
	EpisodeID    int64  `json:"episodeId"`
	EpisodeTitle string `json:"episodeTitle"`
	MangaID      int64  `json:"mangaId"`
	MangaTitle   string `json:"mangaTitle"`
	IsLocked     bool   `json:"isLocked"`
	IsDownloaded bool   `json:"isDownloaded"`
}

// TaskFromItem rebuilds a task from a history row so pending work can be
// resubmitted after a restart.
func TaskFromItem(item *queue.Item) EpisodeTask {
	return EpisodeTask{
		EpisodeID:    item.EpisodeID,
		EpisodeTitle: item.EpisodeTitle,
		MangaID:      item.MangaID,
		MangaTitle:   item.MangaTitle,
	}
}

func (t EpisodeTask) historyEpisode() queue.Episode {
	return queue.Episode{
		EpisodeID:    t.EpisodeID,
		EpisodeTitle: t.EpisodeTitle,
		MangaID:      t.MangaID,
		MangaTitle:   t.MangaTitle,
	}
}

// MangaDir is the directory holding every episode of a comic.
func MangaDir(downloadDir string, task EpisodeTask) string {
	return filepath.Join(downloadDir, dirName(task.MangaTitle, "manga", task.MangaID))
}

// EpisodeDir is the final location of a completed episode.
func EpisodeDir(downloadDir string, task EpisodeTask) string {
	return filepath.Join(MangaDir(downloadDir, task), dirName(task.EpisodeTitle, "episode", task.EpisodeID))
}

// TempDir is where an episode's images land until every one of them succeeded.
func TempDir(downloadDir string, task EpisodeTask) string {
	return filepath.Join(MangaDir(downloadDir, task), tempPrefix+dirName(task.EpisodeTitle, "episode", task.EpisodeID))
}

func dirName(title, kind string, id int64) string {
	if name := textutil.SanitizeFileName(title); name != "" {
		return name
	}
	return fmt.Sprintf("%s-%d", kind, id)
}
