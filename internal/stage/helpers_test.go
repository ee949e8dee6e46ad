package stage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"comicdl/internal/queue"
	"comicdl/internal/services"
)

func TestRequireEpisodeDir_Valid(t *testing.T) {
	dir := t.TempDir()
	got, err := RequireEpisodeDir("watermark", &queue.Item{DownloadPath: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != dir {
		t.Fatalf("got %q, want %q", got, dir)
	}
}

func TestRequireEpisodeDir_Missing(t *testing.T) {
	file := filepath.Join(t.TempDir(), "page.jpg")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		item *queue.Item
		want error
	}{
		{name: "nil item", item: nil, want: services.ErrValidation},
		{name: "empty path", item: &queue.Item{}, want: services.ErrValidation},
		{name: "gone", item: &queue.Item{DownloadPath: filepath.Join(t.TempDir(), "gone")}, want: services.ErrNotFound},
		{name: "file", item: &queue.Item{DownloadPath: file}, want: services.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RequireEpisodeDir("archive", tt.item)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
