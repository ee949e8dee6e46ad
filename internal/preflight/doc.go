// Package preflight provides readiness checks for the filesystem paths,
// catalog endpoint, and external binaries comicdl depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before starting the download coordinator and
//     refuses to start when a directory check fails.
//   - The CLI "comicdl status" command shows the same results alongside the
//     daemon state.
package preflight
