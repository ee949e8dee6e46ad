// Package queue persists the episode download history in SQLite.
//
// Every episode the coordinator accepts gets one row keyed by its catalog
// episode id. The row walks the lifecycle pending -> downloading ->
// downloaded -> watermarking -> watermarked -> archiving -> completed, or
// lands in failed with the error message that ended it. The post-processing
// lane polls the store for downloaded and watermarked rows; the CLI reads it
// for `comicdl queue` listings and retries.
//
// The database is state for in-flight and recent work rather than a library
// catalogue. Schema changes bump the version in schema.go; users clear the
// database to adopt the new schema.
package queue
