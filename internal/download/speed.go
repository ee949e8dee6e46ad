package download

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"comicdl/internal/events"
)

const idleSpeed = "0.00 MB/s"

// SpeedSampler turns streamed byte counts into periodic throughput events.
type SpeedSampler struct {
	bytes    atomic.Int64
	interval time.Duration
	active   func() bool
	bus      events.Publisher
	quiet    bool
}

// NewSpeedSampler constructs a sampler. active reports whether any episode is
// currently downloading.
func NewSpeedSampler(bus events.Publisher, interval time.Duration, active func() bool) *SpeedSampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &SpeedSampler{bus: bus, interval: interval, active: active, quiet: true}
}

// Add records n downloaded bytes. Safe for concurrent use.
func (s *SpeedSampler) Add(n int64) {
	s.bytes.Add(n)
}

// Run samples until ctx is done.
func (s *SpeedSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick publishes one sample while downloads are active and a single idle
// sample once they drain.
func (s *SpeedSampler) tick() {
	n := s.bytes.Swap(0)
	if s.active != nil && s.active() {
		s.quiet = false
		s.bus.Publish(events.DownloadSpeed{Speed: FormatSpeed(n, s.interval)})
		return
	}
	if !s.quiet {
		s.quiet = true
		s.bus.Publish(events.DownloadSpeed{Speed: idleSpeed})
	}
}

// FormatSpeed renders n bytes transferred over interval as MB/s with two
// decimals.
func FormatSpeed(n int64, interval time.Duration) string {
	if interval <= 0 || n <= 0 {
		return idleSpeed
	}
	mbps := float64(n) / interval.Seconds() / (1024 * 1024)
	return fmt.Sprintf("%.2f MB/s", mbps)
}
