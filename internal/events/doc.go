// Package events is the typed registry for everything the downloader reports.
//
// Each event has a Kind, a stable kebab-case wire name held in a lookup table,
// and a payload struct whose JSON field names match what clients already
// consume (epId, errMsg, dirPath, ...). Producers publish payloads on a Bus;
// subscribers attach by Kind, by wire name, or with the generic On helper to
// receive the concrete payload type. The Journal retains recent events as
// sequence-numbered envelopes for clients polling over IPC or HTTP.
package events
