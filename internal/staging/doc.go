// Package staging reclaims unfinished episode directories.
//
// A failed download keeps its ".downloading-" directory so a retry only
// fetches the missing images. Directories nobody came back for are removed
// once they are older than download.stale_temp_days.
package staging
