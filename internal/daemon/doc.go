// Package daemon coordinates the long-running comicdl process.
//
// It wires configuration, the history store, the download coordinator, the
// post-processing workflow, the command dispatcher and the event journal into
// a single lifecycle with flock-based locking to prevent multiple instances.
// Start runs the preflight checks, rolls interrupted work back and resubmits
// pending episodes; Stop cancels downloads and post-processing and releases
// the lock.
//
// The daemon also serves an optional HTTP API (see api_server.go) and exposes
// the history maintenance helpers used by the IPC service.
//
// Keep orchestration logic here: downloading and post-processing live in
// their own packages while the daemon focuses on startup, shutdown and high
// level coordination.
package daemon
