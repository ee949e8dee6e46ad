package archive_test

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"comicdl/internal/archive"
	"comicdl/internal/config"
	"comicdl/internal/services"
	"comicdl/internal/testsupport"
)

func seedEpisode(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Comic", "1 Start")
	for _, name := range []string{"002.jpg", "001.jpg", ".001.wm.jpg"} {
		testsupport.WriteFile(t, filepath.Join(dir, name), 64)
	}
	return dir
}

func TestPackCBZ(t *testing.T) {
	dir := seedEpisode(t)

	path, err := archive.Pack(context.Background(), dir, config.ArchiveCBZ, archive.ComicInfo{Series: "Comic", Title: "1 Start", Number: "1"})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if path != dir+".cbz" {
		t.Fatalf("unexpected archive path %q", path)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected episode dir removed, got %v", err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{archive.ComicInfoName, "001.jpg", "002.jpg"}
	if len(names) != len(want) {
		t.Fatalf("entries = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("entries = %v, want %v", names, want)
		}
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("open metadata: %v", err)
	}
	defer rc.Close()
	raw, _ := io.ReadAll(rc)
	var info archive.ComicInfo
	if err := xml.Unmarshal(raw, &info); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if info.Series != "Comic" || info.Title != "1 Start" || info.Number != "1" || info.PageCount != 2 || info.Manga == "" {
		t.Fatalf("unexpected metadata %+v", info)
	}

	if found, ok := archive.Existing(dir); !ok || found != path {
		t.Fatalf("Existing = %q %v", found, ok)
	}
}

func TestPackImageFormatIsNoop(t *testing.T) {
	dir := seedEpisode(t)
	path, err := archive.Pack(context.Background(), dir, config.ArchiveImage, archive.ComicInfo{})
	if err != nil || path != dir {
		t.Fatalf("Pack = %q, %v", path, err)
	}
	if found, ok := archive.Existing(dir); !ok || found != dir {
		t.Fatalf("Existing = %q %v", found, ok)
	}
}

func TestPackErrors(t *testing.T) {
	dir := seedEpisode(t)
	if _, err := archive.Pack(context.Background(), dir, "rar", archive.ComicInfo{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.Mkdir(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := archive.Pack(context.Background(), empty, config.ArchiveZip, archive.ComicInfo{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := archive.Existing(filepath.Join(t.TempDir(), "missing")); ok {
		t.Fatal("expected nothing on disk")
	}
}

func TestPackCancelledKeepsDirectory(t *testing.T) {
	dir := seedEpisode(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := archive.Pack(ctx, dir, config.ArchiveZip, archive.ComicInfo{}); !services.Cancelled(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected directory kept: %v", err)
	}
	if _, err := os.Stat(dir + ".zip"); !os.IsNotExist(err) {
		t.Fatalf("expected no archive, got %v", err)
	}
}
