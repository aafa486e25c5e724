// Package dryrun models the process-wide dry-run mode spec.md §9
// requires: an immutable configuration captured at startup, with an
// explicit per-job override rather than a mutable global singleton.
package dryrun

import "sync/atomic"

// Guard holds the process-wide dry-run flag. It is created once at
// startup (explicit initialization) and never mutated by request
// handling; a per-job override is threaded separately through
// SyncJob.DryRun and never touches Guard's own state.
type Guard struct {
	enabled atomic.Bool
}

// New creates a Guard with the given startup-time default.
func New(globalDryRun bool) *Guard {
	g := &Guard{}
	g.enabled.Store(globalDryRun)
	return g
}

// Enabled reports whether global dry-run is active.
func (g *Guard) Enabled() bool {
	return g.enabled.Load()
}

// Effective combines the global flag with a per-job override: true if
// either is set, matching spec.md §6.3's "dry_run=true on a job OR
// DryRunGuard.enabled=true globally".
func (g *Guard) Effective(jobDryRun bool) bool {
	return jobDryRun || g.Enabled()
}
