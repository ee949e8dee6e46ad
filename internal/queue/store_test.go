package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"comicdl/internal/queue"
	"comicdl/internal/services"
	"comicdl/internal/testsupport"
)

func TestEnqueueCreatesAndResetsRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.Enqueue(t, store, 1001, "Comic", "Ep 1")
	if item.ID == 0 || item.Status != queue.StatusPending {
		t.Fatalf("unexpected item: %#v", item)
	}

	if err := store.MarkEpisode(ctx, 1001, queue.StatusFailed, "boom"); err != nil {
		t.Fatalf("MarkEpisode: %v", err)
	}
	failed, err := store.GetByEpisode(ctx, 1001)
	if err != nil {
		t.Fatalf("GetByEpisode: %v", err)
	}
	if failed.Status != queue.StatusFailed || failed.ErrorMessage != "boom" {
		t.Fatalf("expected failed row, got %#v", failed)
	}

	again := testsupport.Enqueue(t, store, 1001, "Comic", "Ep 1 (renamed)")
	if again.ID != item.ID {
		t.Fatalf("expected same row, got %d vs %d", again.ID, item.ID)
	}
	if again.Status != queue.StatusPending || again.ErrorMessage != "" || again.EpisodeTitle != "Ep 1 (renamed)" {
		t.Fatalf("expected reset row, got %#v", again)
	}

	missing, err := store.GetByEpisode(ctx, 42)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing episode, got %#v %v", missing, err)
	}
	if _, err := store.Enqueue(ctx, queue.Episode{}); err == nil {
		t.Fatal("expected error for zero episode id")
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cases := []struct {
		name     string
		initial  queue.Status
		expected queue.Status
	}{
		{"downloading", queue.StatusDownloading, queue.StatusPending},
		{"watermarking", queue.StatusWatermarking, queue.StatusDownloaded},
		{"archiving", queue.StatusArchiving, queue.StatusWatermarked},
		{"completed", queue.StatusCompleted, queue.StatusCompleted},
	}
	ids := make([]int64, len(cases))
	for i, tc := range cases {
		item := testsupport.Enqueue(t, store, int64(2000+i), "Comic", tc.name)
		item.Status = tc.initial
		now := time.Now()
		item.LastHeartbeat = &now
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update: %v", err)
		}
		ids[i] = item.ID
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 items reset, got %d", count)
	}
	for i, tc := range cases {
		updated, err := store.GetByID(ctx, ids[i])
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if updated.Status != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, updated.Status)
		}
		if tc.initial != queue.StatusCompleted && updated.LastHeartbeat != nil {
			t.Fatalf("%s: expected heartbeat cleared", tc.name)
		}
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stale := testsupport.Enqueue(t, store, 3001, "Comic", "stale")
	fresh := testsupport.Enqueue(t, store, 3002, "Comic", "fresh")
	old := time.Now().Add(-time.Hour)
	recent := time.Now()
	for _, pair := range []struct {
		item *queue.Item
		beat *time.Time
	}{{stale, &old}, {fresh, &recent}} {
		pair.item.Status = queue.StatusWatermarking
		pair.item.LastHeartbeat = pair.beat
		if err := store.Update(ctx, pair.item); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	count, err := store.ReclaimStaleProcessing(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reclaimed, got %d", count)
	}
	got, _ := store.GetByID(ctx, stale.ID)
	if got.Status != queue.StatusDownloaded {
		t.Fatalf("expected stale item rolled back, got %s", got.Status)
	}
	got, _ = store.GetByID(ctx, fresh.ID)
	if got.Status != queue.StatusWatermarking {
		t.Fatalf("expected fresh item untouched, got %s", got.Status)
	}
}

func TestListSupportsStatusFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.Enqueue(t, store, 4001, "Comic", "A")
	b := testsupport.Enqueue(t, store, 4002, "Comic", "B")
	c := testsupport.Enqueue(t, store, 4003, "Comic", "C")
	if err := store.RecordDownload(ctx, b.EpisodeID, "/tmp/B", 12); err != nil {
		t.Fatalf("RecordDownload: %v", err)
	}
	if err := store.MarkEpisode(ctx, c.EpisodeID, queue.StatusFailed, "boom"); err != nil {
		t.Fatalf("MarkEpisode: %v", err)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 || items[0].ID != a.ID || items[1].ID != b.ID || items[2].ID != c.ID {
		t.Fatalf("unexpected order: %#v", items)
	}

	filtered, err := store.List(ctx, queue.StatusDownloaded, queue.StatusFailed)
	if err != nil {
		t.Fatalf("filtered List: %v", err)
	}
	if len(filtered) != 2 || filtered[0].ID != b.ID || filtered[1].ID != c.ID {
		t.Fatalf("unexpected filtered items: %#v", filtered)
	}
	if filtered[0].DownloadPath != "/tmp/B" || filtered[0].ImageCount != 12 {
		t.Fatalf("expected download recorded, got %#v", filtered[0])
	}

	next, err := store.NextForStatuses(ctx, queue.StatusDownloaded, queue.StatusWatermarked)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	if next == nil || next.ID != b.ID {
		t.Fatalf("expected B next, got %#v", next)
	}
	none, err := store.NextForStatuses(ctx, queue.StatusArchiving)
	if err != nil || none != nil {
		t.Fatalf("expected no archiving items, got %#v %v", none, err)
	}
}

func TestFinishedEpisodeIDs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, ep := range []queue.Episode{
		{EpisodeID: 1, MangaID: 9, MangaTitle: "M", EpisodeTitle: "1"},
		{EpisodeID: 2, MangaID: 9, MangaTitle: "M", EpisodeTitle: "2"},
		{EpisodeID: 3, MangaID: 9, MangaTitle: "M", EpisodeTitle: "3"},
		{EpisodeID: 4, MangaID: 8, MangaTitle: "N", EpisodeTitle: "4"},
	} {
		if _, err := store.Enqueue(ctx, ep); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	_ = store.RecordDownload(ctx, 1, "/x/1", 3)
	_ = store.MarkEpisode(ctx, 2, queue.StatusCompleted, "")
	_ = store.RecordDownload(ctx, 4, "/x/4", 3)

	ids, err := store.FinishedEpisodeIDs(ctx, 9)
	if err != nil {
		t.Fatalf("FinishedEpisodeIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 finished ids, got %v", ids)
	}
	for _, id := range []int64{1, 2} {
		if _, ok := ids[id]; !ok {
			t.Fatalf("expected %d finished", id)
		}
	}
}

func TestRetryFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.Enqueue(t, store, 5001, "Comic", "A")
	b := testsupport.Enqueue(t, store, 5002, "Comic", "B")
	for _, item := range []*queue.Item{a, b} {
		if err := store.MarkEpisode(ctx, item.EpisodeID, queue.StatusFailed, "boom"); err != nil {
			t.Fatalf("MarkEpisode: %v", err)
		}
	}

	updated, err := store.RetryFailed(ctx, b.ID)
	if err != nil {
		t.Fatalf("RetryFailed targeted: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 retried, got %d", updated)
	}
	got, _ := store.GetByID(ctx, a.ID)
	if got.Status != queue.StatusFailed {
		t.Fatalf("expected A still failed, got %s", got.Status)
	}

	updated, err = store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed all: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 retried, got %d", updated)
	}
	got, _ = store.GetByID(ctx, a.ID)
	if got.Status != queue.StatusPending || got.ErrorMessage != "" {
		t.Fatalf("expected A pending with error cleared, got %#v", got)
	}
}

func TestHealthAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.Enqueue(t, store, 6001, "Comic", "A")
	b := testsupport.Enqueue(t, store, 6002, "Comic", "B")
	c := testsupport.Enqueue(t, store, 6003, "Comic", "C")
	d := testsupport.Enqueue(t, store, 6004, "Comic", "D")
	_ = store.MarkEpisode(ctx, b.EpisodeID, queue.StatusDownloading, "")
	_ = store.MarkEpisode(ctx, c.EpisodeID, queue.StatusCompleted, "")
	_ = store.MarkEpisode(ctx, d.EpisodeID, queue.StatusFailed, "boom")

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	want := queue.HealthSummary{Total: 4, Pending: 1, Processing: 1, Failed: 1, Completed: 1}
	if health != want {
		t.Fatalf("unexpected health %+v", health)
	}

	diag, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !diag.DatabaseExists || !diag.TableExists || !diag.IntegrityCheck || len(diag.MissingColumns) != 0 || diag.TotalItems != 4 {
		t.Fatalf("unexpected diagnostics %+v", diag)
	}

	if n, err := store.ClearCompleted(ctx); err != nil || n != 1 {
		t.Fatalf("ClearCompleted = %d, %v", n, err)
	}
	if n, err := store.ClearFailed(ctx); err != nil || n != 1 {
		t.Fatalf("ClearFailed = %d, %v", n, err)
	}
	if ok, err := store.Remove(ctx, b.ID); err != nil || !ok {
		t.Fatalf("Remove = %v, %v", ok, err)
	}
	if n, err := store.Clear(ctx); err != nil || n != 1 {
		t.Fatalf("Clear = %d, %v", n, err)
	}
}

func TestFailureStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want queue.Status
	}{
		{"cancelled", services.Wrap(services.ErrCancelled, "download", "fetch", "stopped", nil), queue.StatusPending},
		{"context", context.Canceled, queue.StatusPending},
		{"transient", services.Wrap(services.ErrTransient, "download", "fetch", "503", nil), queue.StatusFailed},
		{"plain", errors.New("boom"), queue.StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := queue.FailureStatus(tc.err); got != tc.want {
				t.Fatalf("FailureStatus = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" Watermarked "); !ok || status != queue.StatusWatermarked {
		t.Fatalf("ParseStatus = %q %v", status, ok)
	}
	if _, ok := queue.ParseStatus("ripping"); ok {
		t.Fatal("expected unknown status")
	}
}
