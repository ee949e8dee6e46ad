// Command comicdl is the command line front end for the comicdl daemon.
//
// Daemon lifecycle commands (start, stop, restart, status) manage the
// background process. Catalog commands (search, comic, download, watermark,
// open) call the daemon's command surface over the IPC socket, and the queue,
// events and logs commands inspect the episode history and the live streams.
// Queue commands fall back to reading the history database directly when the
// daemon is not running.
package main
