package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"comicdl/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCatalog(t *testing.T) {
	tests := []struct {
		name   string
		status int
		pass   bool
	}{
		{name: "ok", status: http.StatusOK, pass: true},
		{name: "method not allowed still reachable", status: http.StatusMethodNotAllowed, pass: true},
		{name: "forbidden", status: http.StatusForbidden, pass: false},
		{name: "server error", status: http.StatusBadGateway, pass: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("User-Agent") != "comicdl-test" {
					t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			result := CheckCatalog(context.Background(), config.Catalog{BaseURL: srv.URL, UserAgent: "comicdl-test"})
			if result.Passed != tt.pass {
				t.Fatalf("passed = %v, want %v (%s)", result.Passed, tt.pass, result.Detail)
			}
		})
	}
}

func TestCheckCatalog_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	result := CheckCatalog(context.Background(), config.Catalog{BaseURL: url})
	if result.Passed {
		t.Fatal("expected failure for closed server")
	}
	if result := CheckCatalog(context.Background(), config.Catalog{}); result.Passed {
		t.Fatal("expected failure for missing url")
	}
}

func TestRunAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DownloadDir = filepath.Join(base, "comics")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Catalog.BaseURL = srv.URL
	cfg.Watermark.Command = []string{"clearly-not-present-binary", "{input}", "{output}"}
	if err := os.MkdirAll(cfg.Paths.DownloadDir, 0o755); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), &cfg)
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	if r := byName["Download directory"]; !r.Passed || !r.Fatal {
		t.Fatalf("download dir: %+v", r)
	}
	if r := byName["State directory"]; r.Passed || !r.Fatal {
		t.Fatalf("state dir should fail fatally: %+v", r)
	}
	if r := byName["Catalog API"]; !r.Passed {
		t.Fatalf("catalog: %+v", r)
	}
	if r := byName["Watermark command"]; r.Passed {
		t.Fatalf("watermark command should be missing: %+v", r)
	}
	if _, ok := byName["File manager"]; !ok {
		t.Fatal("file manager check missing")
	}

	failed := Failed(results)
	if len(failed) < 3 {
		t.Fatalf("expected state, log and watermark failures, got %+v", failed)
	}
	if RunAll(context.Background(), nil) != nil {
		t.Fatal("nil config should yield no results")
	}
}
