// Package scheduler implements admission control, time-based release,
// single-flight by fingerprint, and weekly batch planning (spec.md
// §4.5). Directly grounded on tomtom215-cartographus's
// internal/newsletter/scheduler.go: a Config{CheckInterval,
// MaxConcurrentDeliveries,...}, a ticker-driven Start/Stop loop with
// stopCh/doneCh, and a bounded semaphore + sync.WaitGroup for
// concurrent execution of due work — the most direct domain analog in
// the whole example pack.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/signalpress/signalpress/internal/jobstore"
	"github.com/signalpress/signalpress/internal/ratelimit"
	"github.com/signalpress/signalpress/pkg/models"
)

// Config mirrors the cartographus scheduler's shape, generalized to
// SignalPress's domain.
type Config struct {
	CheckInterval          time.Duration
	MaxConcurrentDeliveries int
}

func DefaultConfig() Config {
	return Config{CheckInterval: 500 * time.Millisecond, MaxConcurrentDeliveries: 8}
}

// Runner is the SyncOrchestrator capability the Scheduler depends on:
// run a due job. Kept as a narrow interface so scheduler does not
// import the orchestrator package directly.
type Runner interface {
	Run(ctx context.Context, job models.SyncJob)
}

// Scheduler admits jobs into the store, holds them until due, enforces
// single-flight by fingerprint, and releases due jobs to the Runner
// through a bounded worker pool.
type Scheduler struct {
	store   jobstore.Store
	runner  Runner
	rates   *ratelimit.RateLimiters
	cfg     Config

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// pendingByFingerprint tracks job ids queued behind an in-flight
	// job with the same fingerprint (spec.md §4.5 single-flight).
	pendingByFingerprint map[string][]string
}

func New(store jobstore.Store, runner Runner, rates *ratelimit.RateLimiters, cfg Config) *Scheduler {
	return &Scheduler{
		store:                store,
		runner:               runner,
		rates:                rates,
		cfg:                  cfg,
		pendingByFingerprint: make(map[string][]string),
	}
}

// AdmitResult reports the outcome of Admit: the job id the caller should
// track and whether the submission was deduplicated onto an existing
// in-flight job. A fingerprint match with divergent content is queued,
// not rejected; Admit returns no conflict error.
type AdmitResult struct {
	JobID       string
	Deduplicated bool
}

// Admit accepts a freshly-created pending job into the scheduler: if
// another non-terminal job shares its fingerprint, this job is
// deduplicated (identical content hash) or queued (divergent content);
// otherwise it is marked scheduled immediately.
func (s *Scheduler) Admit(job models.SyncJob) (AdmitResult, error) {
	s.mu.Lock()
	if existingID, inFlight := s.store.FindByFingerprint(job.Fingerprint); inFlight && existingID != job.JobID {
		existing, err := s.store.Get(existingID)
		if err == nil && existing.ContentHash == job.ContentHash {
			s.mu.Unlock()
			return AdmitResult{JobID: existingID, Deduplicated: true}, nil
		}
		s.pendingByFingerprint[job.Fingerprint] = append(s.pendingByFingerprint[job.Fingerprint], job.JobID)
		s.mu.Unlock()
		return AdmitResult{JobID: job.JobID}, nil
	}
	s.mu.Unlock()

	if err := s.store.Transition(job.JobID, models.JobPending, models.JobScheduled, nil); err != nil {
		return AdmitResult{}, err
	}
	return AdmitResult{JobID: job.JobID}, nil
}

// Start runs the release loop until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()
	<-doneCh
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.checkAndRelease(ctx)
		}
	}
}

func (s *Scheduler) checkAndRelease(ctx context.Context) {
	status := models.JobScheduled
	jobs, _, err := s.store.List(jobstore.ListFilter{Status: &status})
	if err != nil {
		log.Warn().Err(err).Msg("scheduler: list due jobs failed")
		return
	}

	now := time.Now().UTC()
	sem := make(chan struct{}, s.cfg.MaxConcurrentDeliveries)
	var wg sync.WaitGroup

	for _, job := range jobs {
		if job.ScheduledFor != nil && job.ScheduledFor.After(now) {
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(job models.SyncJob) {
			defer wg.Done()
			defer func() { <-sem }()
			s.runner.Run(ctx, job)
			s.releaseNextQueued(job.Fingerprint)
		}(job)
	}
	wg.Wait()
}

// releaseNextQueued promotes the next job queued behind fingerprint (if
// any) now that the in-flight job with that fingerprint has finished.
func (s *Scheduler) releaseNextQueued(fingerprint string) {
	s.mu.Lock()
	queue := s.pendingByFingerprint[fingerprint]
	if len(queue) == 0 {
		s.mu.Unlock()
		return
	}
	next := queue[0]
	s.pendingByFingerprint[fingerprint] = queue[1:]
	s.mu.Unlock()

	_ = s.store.Transition(next, models.JobPending, models.JobScheduled, nil)
}
