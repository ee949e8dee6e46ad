package testsupport

import (
	"context"
	"testing"

	"comicdl/internal/config"
	"comicdl/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Enqueue records an episode for tests using the provided store.
func Enqueue(t testing.TB, store *queue.Store, episodeID int64, mangaTitle, episodeTitle string) *queue.Item {
	t.Helper()

	item, err := store.Enqueue(context.Background(), queue.Episode{
		EpisodeID:    episodeID,
		EpisodeTitle: episodeTitle,
		MangaID:      episodeID / 1000,
		MangaTitle:   mangaTitle,
	})
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return item
}
