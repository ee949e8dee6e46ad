package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"comicdl/internal/fetcher"
	"comicdl/internal/services"
)

func TestFetchWritesNumberedFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "abc" {
			t.Errorf("expected token query, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte("pixels"))
	}))
	t.Cleanup(server.Close)

	var counted atomic.Int64
	f := fetcher.New(fetcher.WithByteCounter(func(n int64) { counted.Add(n) }))
	dir := t.TempDir()

	res, err := f.Fetch(context.Background(), fetcher.Request{URL: server.URL + "/img/page.png?token=abc", Dir: dir, Current: 7})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if want := filepath.Join(dir, "007.png"); res.Path != want {
		t.Fatalf("expected %s, got %s", want, res.Path)
	}
	if res.Bytes != 6 || counted.Load() != 6 {
		t.Fatalf("expected 6 bytes written and counted, got %d/%d", res.Bytes, counted.Load())
	}
	data, err := os.ReadFile(res.Path)
	if err != nil || string(data) != "pixels" {
		t.Fatalf("unexpected file content %q err=%v", data, err)
	}
}

func TestFetchClassifiesStatus(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			t.Cleanup(server.Close)

			dir := t.TempDir()
			_, err := fetcher.New().Fetch(context.Background(), fetcher.Request{URL: server.URL + "/a.jpg", Dir: dir, Current: 1})
			if err == nil {
				t.Fatal("expected error")
			}
			if services.Retryable(err) != tc.retryable {
				t.Fatalf("Retryable = %v for %v", services.Retryable(err), err)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Fatalf("expected no files, found %d", len(entries))
			}
		})
	}
}

func TestFetchCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fetcher.New().Fetch(ctx, fetcher.Request{URL: server.URL + "/a.jpg", Dir: t.TempDir(), Current: 1})
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
}

func TestFetchRejectsZeroPosition(t *testing.T) {
	_, err := fetcher.New().Fetch(context.Background(), fetcher.Request{URL: "http://example.invalid/a.jpg", Dir: t.TempDir()})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExtFromURL(t *testing.T) {
	cases := map[string]string{
		"https://x/a.JPG":          ".jpg",
		"https://x/a.webp?token=1": ".webp",
		"https://x/a":              ".jpg",
		"https://x/a.exe":          ".jpg",
		"https://x/1.gif":          ".gif",
		"https://x/1.AVIF":         ".avif",
	}
	for in, want := range cases {
		if got := fetcher.ExtFromURL(in); got != want {
			t.Errorf("ExtFromURL(%q) = %q, want %q", in, got, want)
		}
	}
	if got := fetcher.FileName(12, ""); got != "012.jpg" {
		t.Fatalf("FileName = %q", got)
	}
	for _, ext := range []string{".GIF", ".webp", ".jpeg"} {
		if !fetcher.IsImageExt(ext) {
			t.Errorf("IsImageExt(%q) = false", ext)
		}
	}
	if fetcher.IsImageExt(".txt") {
		t.Error("IsImageExt(.txt) = true")
	}
}
