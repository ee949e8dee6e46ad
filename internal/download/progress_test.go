package download

import (
	"context"
	"errors"
	"testing"
	"time"

	"comicdl/internal/events"
	"comicdl/internal/services"
)

type capture struct {
	payloads []events.Payload
}

func (c *capture) Publish(p events.Payload) { c.payloads = append(c.payloads, p) }

func TestAggregatorAccumulatesAndResets(t *testing.T) {
	bus := &capture{}
	agg := NewAggregator(bus)

	agg.Admit(2)
	agg.Begin(2)
	agg.Begin(3)
	for range 5 {
		agg.Complete()
	}
	if len(bus.payloads) != 5 {
		t.Fatalf("expected 5 publications, got %d", len(bus.payloads))
	}
	last := bus.payloads[4].(events.OverallProgress)
	if last.DownloadedImageCount != 5 || last.TotalImageCount != 5 || last.Percentage != 100 {
		t.Fatalf("unexpected final progress %+v", last)
	}
	first := bus.payloads[0].(events.OverallProgress)
	if first.Percentage != 20 {
		t.Fatalf("expected percentage scaled to 100, got %v", first.Percentage)
	}

	agg.EndEpisode()
	if snap := agg.Snapshot(); snap.TotalImageCount != 5 {
		t.Fatalf("totals must survive while an episode is active, got %+v", snap)
	}
	agg.EndEpisode()
	if snap := agg.Snapshot(); snap.TotalImageCount != 0 || snap.DownloadedImageCount != 0 {
		t.Fatalf("expected reset after drain, got %+v", snap)
	}
	agg.EndEpisode()
	if snap := agg.Snapshot(); snap.TotalImageCount != 0 {
		t.Fatalf("extra EndEpisode must be harmless, got %+v", snap)
	}
}

func TestAggregatorKeepsTotalsWhileEpisodesQueued(t *testing.T) {
	bus := &capture{}
	agg := NewAggregator(bus)
	agg.Admit(2)

	agg.Begin(2)
	agg.Complete()
	agg.Complete()
	agg.EndEpisode()

	agg.Begin(2)
	agg.Complete()
	agg.Complete()
	agg.EndEpisode()

	prev := 0
	for i, p := range bus.payloads {
		got := p.(events.OverallProgress)
		if got.DownloadedImageCount < prev {
			t.Fatalf("progress %d went backwards: %d -> %d", i, prev, got.DownloadedImageCount)
		}
		prev = got.DownloadedImageCount
	}
	if last := bus.payloads[len(bus.payloads)-1].(events.OverallProgress); last.DownloadedImageCount != 4 || last.TotalImageCount != 4 {
		t.Fatalf("unexpected final progress %+v", last)
	}
	if snap := agg.Snapshot(); snap.TotalImageCount != 0 {
		t.Fatalf("expected reset once the batch drained, got %+v", snap)
	}
}

func TestAggregatorNeverExceedsTotal(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Admit(1)
	agg.Begin(1)
	agg.Complete()
	agg.Complete()
	if snap := agg.Snapshot(); snap.DownloadedImageCount != 1 {
		t.Fatalf("downloaded exceeded total: %+v", snap)
	}
}

func TestSpeedSamplerGoesQuietAfterDrain(t *testing.T) {
	bus := &capture{}
	active := true
	sampler := NewSpeedSampler(bus, time.Second, func() bool { return active })

	sampler.tick()
	sampler.Add(1024 * 1024)
	sampler.tick()
	active = false
	sampler.tick()
	sampler.tick()

	var got []string
	for _, p := range bus.payloads {
		got = append(got, p.(events.DownloadSpeed).Speed)
	}
	want := []string{"0.00 MB/s", "1.00 MB/s", "0.00 MB/s"}
	if len(got) != len(want) {
		t.Fatalf("samples = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("samples = %v, want %v", got, want)
		}
	}
}

func TestSpeedSamplerSilentBeforeFirstDownload(t *testing.T) {
	bus := &capture{}
	sampler := NewSpeedSampler(bus, time.Second, func() bool { return false })
	sampler.tick()
	sampler.tick()
	if len(bus.payloads) != 0 {
		t.Fatalf("expected no samples while idle, got %v", bus.payloads)
	}
}

func TestFormatSpeed(t *testing.T) {
	cases := []struct {
		bytes    int64
		interval time.Duration
		want     string
	}{
		{0, time.Second, "0.00 MB/s"},
		{3 * 1024 * 1024, 2 * time.Second, "1.50 MB/s"},
		{512 * 1024, 500 * time.Millisecond, "1.00 MB/s"},
		{100, 0, "0.00 MB/s"},
	}
	for _, tc := range cases {
		if got := FormatSpeed(tc.bytes, tc.interval); got != tc.want {
			t.Fatalf("FormatSpeed(%d, %v) = %q, want %q", tc.bytes, tc.interval, got, tc.want)
		}
	}
}

func TestRetryPolicy(t *testing.T) {
	transient := services.Wrap(services.ErrTransient, "fetcher", "fetch", "503", nil)
	permanent := services.Wrap(services.ErrExternal, "fetcher", "fetch", "404", nil)
	cases := []struct {
		name      string
		attempts  int
		failures  int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{"success first try", 2, 0, transient, 1, false},
		{"recovers", 2, 2, transient, 3, false},
		{"exhausted", 1, 5, transient, 2, true},
		{"permanent not retried", 3, 5, permanent, 1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			policy := RetryPolicy{Attempts: tc.attempts, Backoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
			calls := 0
			err := policy.Do(context.Background(), func(context.Context) error {
				calls++
				if calls <= tc.failures {
					return tc.err
				}
				return nil
			})
			if calls != tc.wantCalls {
				t.Fatalf("calls = %d, want %d", calls, tc.wantCalls)
			}
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestRetryPolicyCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{Attempts: 3, Backoff: time.Hour}
	err := policy.Do(ctx, func(context.Context) error {
		cancel()
		return services.Wrap(services.ErrTransient, "fetcher", "fetch", "503", nil)
	})
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
