// Package daemonctl launches, stops and inspects the comicdl daemon process
// from the CLI side of the IPC socket.
package daemonctl
