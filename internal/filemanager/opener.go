// Package filemanager reveals downloaded episodes in the desktop file manager.
package filemanager

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"comicdl/internal/services"
)

var commandContext = exec.CommandContext

// Opener shows a path in the platform file manager.
type Opener interface {
	Reveal(ctx context.Context, path string) error
}

// System launches the file manager of the running platform.
type System struct {
	GOOS string
}

// Reveal opens the file manager at path. The launched process is not waited on.
func (s System) Reveal(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "filemanager", "reveal", path+" does not exist", err)
	}
	goos := s.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	name, args := RevealCommand(goos, path, info.IsDir())
	cmd := commandContext(ctx, name, args...) //nolint:gosec
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternal, "filemanager", "reveal", fmt.Sprintf("launch %s", name), err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// RevealCommand returns the command line that shows path on goos. Files are
// selected where the platform supports it; elsewhere their directory opens.
func RevealCommand(goos, path string, isDir bool) (string, []string) {
	switch goos {
	case "darwin":
		if isDir {
			return "open", []string{path}
		}
		return "open", []string{"-R", path}
	case "windows":
		if isDir {
			return "explorer", []string{path}
		}
		return "explorer", []string{"/select," + path}
	default:
		if isDir {
			return "xdg-open", []string{path}
		}
		return "xdg-open", []string{filepath.Dir(path)}
	}
}
