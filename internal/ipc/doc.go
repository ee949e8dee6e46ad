// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and the
// conversions between history models and wire representations. Command
// invocations pass the dispatcher's Result through unchanged, and the Events
// and Logs calls long-poll with a bounded wait so clients can follow the
// daemon without a persistent stream.
//
// Reuse these types when adding new RPC endpoints to keep the protocol stable
// and compatible with existing command implementations.
package ipc
