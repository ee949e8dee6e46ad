package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"comicdl/internal/archive"
	"comicdl/internal/catalog"
	"comicdl/internal/commands"
	"comicdl/internal/config"
	"comicdl/internal/daemon"
	"comicdl/internal/download"
	"comicdl/internal/events"
	"comicdl/internal/ipc"
	"comicdl/internal/logging"
	"comicdl/internal/queue"
	"comicdl/internal/testsupport"
	"comicdl/internal/workflow"
)

const testComicID = 7

// fakeCatalog serves one comic with an unlocked and a locked episode, and two
// pages per episode from an httptest image server.
type fakeCatalog struct {
	imageBase string
}

func (c *fakeCatalog) Search(_ context.Context, keyword string, page int) (*catalog.SearchResult, error) {
	if !strings.Contains("Hero Academy", keyword) {
		return &catalog.SearchResult{TotalPage: 0}, nil
	}
	return &catalog.SearchResult{
		Comics: []catalog.SearchComic{{
			ID:          testComicID,
			Title:       "Hero Academy",
			AuthorNames: []string{"A. Author"},
			Styles:      []string{"action"},
		}},
		TotalPage: 1,
		TotalNum:  1,
	}, nil
}

func (c *fakeCatalog) Comic(_ context.Context, comicID int64) (*catalog.Comic, error) {
	return &catalog.Comic{
		ID:          comicID,
		Title:       "Hero Academy",
		AuthorNames: []string{"A. Author"},
		Episodes: []catalog.Episode{
			{EpisodeID: 701, EpisodeTitle: "Ep 1", MangaID: comicID, MangaTitle: "Hero Academy", Order: 1},
			{EpisodeID: 702, EpisodeTitle: "Ep 2", MangaID: comicID, MangaTitle: "Hero Academy", Order: 2, IsLocked: true},
		},
	}, nil
}

func (c *fakeCatalog) ImageIndex(context.Context, int64) (*catalog.ImageIndex, error) {
	return &catalog.ImageIndex{Images: []catalog.Image{{Path: "/1.jpg"}, {Path: "/2.jpg"}}}, nil
}

func (c *fakeCatalog) ImageTokens(_ context.Context, paths []string) ([]catalog.ImageToken, error) {
	tokens := make([]catalog.ImageToken, len(paths))
	for i, p := range paths {
		tokens[i] = catalog.ImageToken{URL: c.imageBase + p, Token: "tok"}
	}
	return tokens, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	configPath string
}

// setupCLIConfig writes a config file for an isolated environment without
// starting a daemon.
func setupCLIConfig(t *testing.T) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = "off"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

// setupCLITestEnv starts a daemon and IPC server behind the config file.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	env := setupCLIConfig(t)
	cfg := env.cfg

	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("image " + r.URL.Path))
	}))
	t.Cleanup(images.Close)

	store := testsupport.MustOpenStore(t, cfg)
	env.store = store

	logger := logging.NewNop()
	bus := events.NewBus()
	cat := &fakeCatalog{imageBase: images.URL}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logger, nil)
	mgr.ConfigureStages(workflow.StageSet{Archive: archive.NewStage(cfg, logger)})
	coord, err := download.NewCoordinator(cfg, download.Options{
		Catalog:    cat,
		History:    store,
		Bus:        bus,
		Downloaded: func(int64) { mgr.Wake() },
	})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	d, err := daemon.New(cfg, store, logger, daemon.Components{
		Workflow:  mgr,
		Downloads: coord,
		Commands:  commands.New(commands.Dependencies{Config: cfg, Downloads: coord, Catalog: cat, History: store}),
		Bus:       bus,
		Journal:   events.NewJournal(512),
		LogHub:    logging.NewStreamHub(128),
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start: %v", err)
	}
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		cancel()
		_ = d.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = d.Close()
	})
	return env
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", needle, haystack)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
