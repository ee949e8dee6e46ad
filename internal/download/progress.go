package download

import (
	"sync"

	"comicdl/internal/events"
)

// Aggregator folds per-image outcomes of every episode in a batch into one
// OverallProgress stream. An episode belongs to the batch from Admit until
// EndEpisode, queued time included. Totals reset only once no admitted episode
// is left, so a new batch starts from zero.
type Aggregator struct {
	mu         sync.Mutex
	bus        events.Publisher
	admitted   int
	downloaded int
	total      int
}

// NewAggregator constructs an aggregator publishing to bus.
func NewAggregator(bus events.Publisher) *Aggregator {
	return &Aggregator{bus: bus}
}

// Admit adds n episodes to the current batch before any of them runs.
func (a *Aggregator) Admit(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.admitted += max(n, 0)
}

// Begin adds the image count of an admitted episode once it is known.
func (a *Aggregator) Begin(total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total += max(total, 0)
}

// Complete counts one image that reached a terminal outcome and publishes the
// new totals. Publishing happens under the lock so subscribers observe a
// non-decreasing downloaded count.
func (a *Aggregator) Complete() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.downloaded < a.total {
		a.downloaded++
	}
	if a.bus != nil {
		a.bus.Publish(a.snapshotLocked())
	}
}

// EndEpisode removes an admitted episode from the batch, whatever its outcome.
func (a *Aggregator) EndEpisode() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.admitted > 0 {
		a.admitted--
	}
	if a.admitted == 0 {
		a.downloaded = 0
		a.total = 0
	}
}

// Snapshot returns the current totals.
func (a *Aggregator) Snapshot() events.OverallProgress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() events.OverallProgress {
	progress := events.OverallProgress{
		DownloadedImageCount: a.downloaded,
		TotalImageCount:      a.total,
	}
	if a.total > 0 {
		progress.Percentage = float64(a.downloaded) / float64(a.total) * 100
	}
	return progress
}
