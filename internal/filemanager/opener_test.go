package filemanager

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"

	"comicdl/internal/services"
)

func TestRevealCommand(t *testing.T) {
	cases := []struct {
		goos  string
		path  string
		isDir bool
		name  string
		args  []string
	}{
		{"linux", "/c/ep/001.jpg", false, "xdg-open", []string{"/c/ep"}},
		{"linux", "/c/ep", true, "xdg-open", []string{"/c/ep"}},
		{"darwin", "/c/ep.cbz", false, "open", []string{"-R", "/c/ep.cbz"}},
		{"windows", `C:\c\ep.cbz`, false, "explorer", []string{`/select,C:\c\ep.cbz`}},
	}
	for _, tc := range cases {
		name, args := RevealCommand(tc.goos, tc.path, tc.isDir)
		if name != tc.name || !slices.Equal(args, tc.args) {
			t.Fatalf("%s %s: got %s %v", tc.goos, tc.path, name, args)
		}
	}
}

func TestRevealMissingPath(t *testing.T) {
	err := System{}.Reveal(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRevealLaunchesCommand(t *testing.T) {
	var captured []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append([]string{name}, args...)
		return exec.CommandContext(ctx, os.Args[0], "-test.run=^$")
	}
	t.Cleanup(func() { commandContext = original })

	dir := t.TempDir()
	if err := (System{GOOS: "linux"}).Reveal(context.Background(), dir); err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if !slices.Equal(captured, []string{"xdg-open", dir}) {
		t.Fatalf("unexpected command %v", captured)
	}
}
