package jobstore

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/signalpress/signalpress/internal/metrics"
)

// minTerminalAge is spec.md §4.8's floor: terminal jobs are retained
// for at least 24h regardless of configuration.
const minTerminalAge = 24 * time.Hour

// Janitor periodically evicts terminal jobs older than the configured
// retention window. Adapted from the teacher's
// internal/retention/janitor.go ticker-driven loop, trimmed to pure
// eviction: spec.md §4.8 calls for age-based purge only, no archival
// step, so the teacher's archive-driver registry is not carried here.
type Janitor struct {
	store    Store
	interval time.Duration
	maxAge   time.Duration
}

func NewJanitor(store Store, interval time.Duration, retentionDays int) *Janitor {
	if retentionDays < 1 {
		retentionDays = 1
	}
	if retentionDays > 30 {
		retentionDays = 30
	}
	return &Janitor{
		store:    store,
		interval: interval,
		maxAge:   time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// Start runs the eviction loop until ctx is cancelled. It runs once
// immediately, then on every tick.
func (j *Janitor) Start(ctx context.Context) {
	j.runCycle()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runCycle()
		}
	}
}

func (j *Janitor) runCycle() {
	maxAge := j.maxAge
	if maxAge < minTerminalAge {
		maxAge = minTerminalAge
	}
	evicted := j.store.EvictExpired(time.Now().UTC(), minTerminalAge, maxAge)
	if evicted > 0 {
		metrics.JobsRetentionEvictedTotal.Add(float64(evicted))
		log.Info().Int("evicted", evicted).Msg("jobstore retention cycle evicted terminal jobs")
	}
}
