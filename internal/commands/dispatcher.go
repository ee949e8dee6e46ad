package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"comicdl/internal/catalog"
	"comicdl/internal/config"
	"comicdl/internal/download"
	"comicdl/internal/filemanager"
	"comicdl/internal/logging"
	"comicdl/internal/services"
	"comicdl/internal/watermark"
)

// Downloader accepts episode batches.
type Downloader interface {
	Submit(ctx context.Context, tasks []download.EpisodeTask) error
}

// ComicSource is the catalog surface the commands use.
type ComicSource interface {
	Search(ctx context.Context, keyword string, page int) (*catalog.SearchResult, error)
	Comic(ctx context.Context, comicID int64) (*catalog.Comic, error)
}

// FinishedLookup reports which episodes of a comic are already on disk
// according to the history store.
type FinishedLookup interface {
	FinishedEpisodeIDs(ctx context.Context, mangaID int64) (map[int64]struct{}, error)
}

// WatermarkRunner strips watermarks from one directory.
type WatermarkRunner interface {
	Run(ctx context.Context, dirPath string) (watermark.Summary, error)
}

// Dependencies wires the dispatcher. History may be nil.
type Dependencies struct {
	Config    *config.Config
	Downloads Downloader
	Catalog   ComicSource
	History   FinishedLookup
	Watermark WatermarkRunner
	Opener    filemanager.Opener
	Logger    *slog.Logger
}

type handlerFunc func(d *Dispatcher, ctx context.Context, args json.RawMessage) (any, error)

var handlers = [nameCount]handlerFunc{
	DownloadEpisodes:      (*Dispatcher).downloadEpisodes,
	ShowPathInFileManager: (*Dispatcher).showPathInFileManager,
	GetComic:              (*Dispatcher).getComic,
	Search:                (*Dispatcher).search,
	RemoveWatermark:       (*Dispatcher).removeWatermark,
	GetConfig:             (*Dispatcher).getConfig,
}

// Dispatcher routes invocations to their handlers.
type Dispatcher struct {
	deps   Dependencies
	logger *slog.Logger

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgMu     sync.Mutex
	bgClosed bool
	bg       sync.WaitGroup
}

// New constructs a dispatcher. Background work started by commands runs until
// Close is called.
func New(deps Dependencies) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		deps:     deps,
		logger:   logging.NewComponentLogger(deps.Logger, "commands"),
		bgCtx:    ctx,
		bgCancel: cancel,
	}
}

// Close cancels background work and waits for it to finish. Work offered
// after Close is refused.
func (d *Dispatcher) Close() {
	d.bgMu.Lock()
	d.bgClosed = true
	d.bgMu.Unlock()
	d.bgCancel()
	d.bg.Wait()
}

// goBackground runs fn on its own goroutine unless the dispatcher is closed.
func (d *Dispatcher) goBackground(fn func()) bool {
	d.bgMu.Lock()
	defer d.bgMu.Unlock()
	if d.bgClosed {
		return false
	}
	d.bg.Add(1)
	go func() {
		defer d.bg.Done()
		fn()
	}()
	return true
}

// Invoke runs the named command. Unknown names and handler errors come back as
// error results; Invoke itself never fails.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args json.RawMessage) Result {
	cmd, ok := Lookup(name)
	if !ok {
		return Failure(services.Wrap(services.ErrValidation, "commands", "invoke", fmt.Sprintf("unknown command %q", name), nil))
	}
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, d.logger).With(logging.String("command", cmd.String()))
	started := time.Now()

	data, err := handlers[cmd](d, ctx, args)
	if err != nil {
		logger.Info("command failed",
			logging.String(logging.FieldEventType, "command_failed"),
			logging.Duration("elapsed", time.Since(started)),
			logging.Error(err),
		)
		return Failure(err)
	}
	logger.Debug("command completed", logging.Duration("elapsed", time.Since(started)))
	return OK(data)
}

// decodeArgs unmarshals args into out; empty args leave out untouched.
func decodeArgs(cmd Name, args json.RawMessage, out any) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, out); err != nil {
		return services.Wrap(services.ErrValidation, "commands", cmd.String(), "invalid arguments", err)
	}
	return nil
}

func missing(cmd Name, what string) error {
	return services.Wrap(services.ErrConfiguration, "commands", cmd.String(), what+" unavailable", nil)
}
