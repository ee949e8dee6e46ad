package preflight

import (
	"context"

	"comicdl/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Fatal marks checks whose failure stops the daemon from starting.
	Fatal bool
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		fatal(CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir)),
		fatal(CheckDirectoryAccess("State directory", cfg.Paths.StateDir)),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckCatalog(ctx, cfg.Catalog),
	}
	for _, status := range CheckSystemDeps(cfg) {
		r := Result{Name: status.Name, Passed: status.Available || status.Optional, Detail: status.Detail}
		if status.Available {
			r.Detail = status.Command + " (found)"
		} else if status.Optional {
			r.Detail += " (optional)"
		}
		results = append(results, r)
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func fatal(r Result) Result {
	r.Fatal = true
	return r
}
