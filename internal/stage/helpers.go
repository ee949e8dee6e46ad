package stage

import (
	"os"
	"strings"

	"comicdl/internal/queue"
	"comicdl/internal/services"
)

// RequireEpisodeDir returns the item's download directory, or a validation
// error when the directory was never recorded or has since disappeared.
func RequireEpisodeDir(component string, item *queue.Item) (string, error) {
	if item == nil {
		return "", services.Wrap(services.ErrValidation, component, "episode dir", "queue item is nil", nil)
	}
	dir := strings.TrimSpace(item.DownloadPath)
	if dir == "" {
		return "", services.Wrap(services.ErrValidation, component, "episode dir",
			"download path missing; retry the episode download", nil)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, component, "episode dir", dir, err)
	}
	if !info.IsDir() {
		return "", services.Wrap(services.ErrValidation, component, "episode dir", dir+" is not a directory", nil)
	}
	return dir, nil
}
