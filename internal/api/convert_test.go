package api

import (
	"testing"
	"time"

	"comicdl/internal/queue"
	"comicdl/internal/stage"
	"comicdl/internal/workflow"
)

func TestFromQueueItem(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 30, 0, 0, time.FixedZone("CET", 3600))
	item := &queue.Item{
		ID:              7,
		EpisodeID:       1001,
		EpisodeTitle:    "Ep 1",
		MangaID:         1,
		MangaTitle:      "Comic",
		Status:          queue.StatusArchiving,
		ImageCount:      24,
		ProgressStage:   "Archiving",
		ProgressPercent: 40,
		ProgressMessage: "Packing cbz",
		DownloadPath:    "/comics/Comic/Ep 1",
		CreatedAt:       created,
	}

	dto := FromQueueItem(item)
	if dto.ID != 7 || dto.EpisodeID != 1001 || dto.MangaTitle != "Comic" || dto.ImageCount != 24 {
		t.Fatalf("unexpected identity fields %+v", dto)
	}
	if dto.Status != "archiving" {
		t.Fatalf("status = %q", dto.Status)
	}
	if dto.Progress != (QueueProgress{Stage: "Archiving", Percent: 40, Message: "Packing cbz"}) {
		t.Fatalf("progress = %+v", dto.Progress)
	}
	if dto.CreatedAt != "2026-03-01T11:30:00.000Z" {
		t.Fatalf("createdAt = %q", dto.CreatedAt)
	}
	if dto.UpdatedAt != "" {
		t.Fatalf("zero updatedAt should be empty, got %q", dto.UpdatedAt)
	}
	if got := FromQueueItem(nil); got != (QueueItem{}) {
		t.Fatalf("nil item = %+v", got)
	}
}

func TestFromStatusSummarySortsStageHealth(t *testing.T) {
	summary := workflow.StatusSummary{
		Running:    true,
		LastError:  "boom",
		LastItem:   &queue.Item{ID: 3, Status: queue.StatusFailed},
		QueueStats: map[queue.Status]int{queue.StatusPending: 2, queue.StatusCompleted: 5},
		StageHealth: map[string]stage.Health{
			"watermark": stage.Unhealthy("watermark", "missing"),
			"archive":   stage.Healthy("archive"),
		},
	}

	wf := FromStatusSummary(summary)
	if !wf.Running || wf.LastError != "boom" {
		t.Fatalf("unexpected status %+v", wf)
	}
	if wf.QueueStats["pending"] != 2 || wf.QueueStats["completed"] != 5 {
		t.Fatalf("queue stats = %v", wf.QueueStats)
	}
	if len(wf.StageHealth) != 2 || wf.StageHealth[0].Name != "archive" || wf.StageHealth[1].Detail != "missing" {
		t.Fatalf("stage health = %+v", wf.StageHealth)
	}
	if wf.LastItem == nil || wf.LastItem.Status != "failed" {
		t.Fatalf("last item = %+v", wf.LastItem)
	}
}
