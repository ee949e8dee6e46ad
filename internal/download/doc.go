// Package download schedules episode downloads and reports their progress.
//
// A Coordinator accepts batches of EpisodeTask values, rejects locked and
// duplicate episodes, and runs at most download.episode_concurrency episodes
// at a time in submission order. Each running episode is driven by a worker
// that fans its images out under download.image_concurrency, writes every
// image through the fetcher, and emits the episode lifecycle on the event bus:
// optional Pending, Start, one success or error event per image, and exactly
// one End. Aggregate progress and throughput samples are published alongside.
package download
