package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/signalpress/signalpress/internal/jobstore"
	"github.com/signalpress/signalpress/internal/ratelimit"
	"github.com/signalpress/signalpress/pkg/models"
)

// fakeRunner records every job it was asked to run and can optionally
// block a named job until released, to drive release-ordering tests.
type fakeRunner struct {
	mu      sync.Mutex
	ran     []string
	gate    map[string]chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{gate: make(map[string]chan struct{})}
}

func (f *fakeRunner) blockOn(jobID string) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gate[jobID] = ch
	f.mu.Unlock()
	return ch
}

func (f *fakeRunner) Run(_ context.Context, job models.SyncJob) {
	f.mu.Lock()
	gate := f.gate[job.JobID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	f.ran = append(f.ran, job.JobID)
	f.mu.Unlock()
}

func (f *fakeRunner) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ran))
	copy(out, f.ran)
	return out
}

func newJob(id, fingerprint, contentHash string) models.SyncJob {
	return models.SyncJob{
		JobID:       id,
		DocumentID:  "doc-1",
		Status:      models.JobPending,
		Fingerprint: fingerprint,
		ContentHash: contentHash,
		CreatedAt:   time.Now().UTC(),
		Results:     make(map[string]models.ChannelResult),
	}
}

func TestAdmitSchedulesJobWithNoConflict(t *testing.T) {
	store := jobstore.NewMemoryStore()
	sched := New(store, newFakeRunner(), ratelimit.NewRateLimiters(), DefaultConfig())

	job := newJob("j1", "fp-1", "hash-1")
	store.Create(job)

	res, err := sched.Admit(job)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if res.Deduplicated {
		t.Fatal("expected no dedup for a fresh fingerprint")
	}

	got, _ := store.Get("j1")
	if got.Status != models.JobScheduled {
		t.Fatalf("expected scheduled, got %s", got.Status)
	}
}

func TestAdmitDeduplicatesIdenticalContentHash(t *testing.T) {
	store := jobstore.NewMemoryStore()
	sched := New(store, newFakeRunner(), ratelimit.NewRateLimiters(), DefaultConfig())

	first := newJob("j1", "fp-1", "hash-1")
	store.Create(first)
	if _, err := sched.Admit(first); err != nil {
		t.Fatalf("Admit first: %v", err)
	}
	store.Transition("j1", models.JobScheduled, models.JobInProgress, nil)

	second := newJob("j2", "fp-1", "hash-1")
	store.Create(second)

	res, err := sched.Admit(second)
	if err != nil {
		t.Fatalf("Admit second: %v", err)
	}
	if !res.Deduplicated || res.JobID != "j1" {
		t.Fatalf("expected dedup to j1, got %+v", res)
	}

	got, _ := store.Get("j2")
	if got.Status != models.JobPending {
		t.Fatalf("expected j2 to remain pending (never scheduled), got %s", got.Status)
	}
}

func TestAdmitQueuesDivergentContentBehindInFlightFingerprint(t *testing.T) {
	store := jobstore.NewMemoryStore()
	sched := New(store, newFakeRunner(), ratelimit.NewRateLimiters(), DefaultConfig())

	first := newJob("j1", "fp-1", "hash-1")
	store.Create(first)
	sched.Admit(first)
	store.Transition("j1", models.JobScheduled, models.JobInProgress, nil)

	second := newJob("j2", "fp-1", "hash-2") // different content, same fingerprint
	store.Create(second)

	res, err := sched.Admit(second)
	if err != nil {
		t.Fatalf("Admit second: %v", err)
	}
	if res.Deduplicated {
		t.Fatal("expected divergent content to be queued, not deduplicated")
	}

	got, _ := store.Get("j2")
	if got.Status != models.JobPending {
		t.Fatalf("expected j2 to stay pending until released, got %s", got.Status)
	}
}

func TestCheckAndReleaseRunsDueScheduledJobs(t *testing.T) {
	store := jobstore.NewMemoryStore()
	runner := newFakeRunner()
	sched := New(store, runner, ratelimit.NewRateLimiters(), DefaultConfig())

	due := newJob("j1", "fp-1", "hash-1")
	due.Status = models.JobScheduled
	store.Create(due)

	future := time.Now().UTC().Add(time.Hour)
	notDue := newJob("j2", "fp-2", "hash-2")
	notDue.Status = models.JobScheduled
	notDue.ScheduledFor = &future
	store.Create(notDue)

	sched.checkAndRelease(context.Background())

	calls := runner.calls()
	if len(calls) != 1 || calls[0] != "j1" {
		t.Fatalf("expected only the due job to run, got %v", calls)
	}
}

func TestReleaseNextQueuedPromotesAfterInFlightFinishes(t *testing.T) {
	store := jobstore.NewMemoryStore()
	runner := newFakeRunner()
	sched := New(store, runner, ratelimit.NewRateLimiters(), DefaultConfig())

	first := newJob("j1", "fp-1", "hash-1")
	store.Create(first)
	sched.Admit(first)
	store.Transition("j1", models.JobScheduled, models.JobInProgress, nil)

	second := newJob("j2", "fp-1", "hash-2")
	store.Create(second)
	sched.Admit(second) // queued behind j1, still pending

	sched.releaseNextQueued("fp-1")

	got, err := store.Get("j2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.JobScheduled {
		t.Fatalf("expected j2 promoted to scheduled, got %s", got.Status)
	}
}

func TestStartStopRunsReleaseLoopAndExitsCleanly(t *testing.T) {
	store := jobstore.NewMemoryStore()
	runner := newFakeRunner()
	sched := New(store, runner, ratelimit.NewRateLimiters(), Config{CheckInterval: 10 * time.Millisecond, MaxConcurrentDeliveries: 4})

	due := newJob("j1", "fp-1", "hash-1")
	due.Status = models.JobScheduled
	store.Create(due)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for len(runner.calls()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	sched.Stop()

	if len(runner.calls()) != 1 {
		t.Fatalf("expected the release loop to run the due job, got %v", runner.calls())
	}
	if sched.IsRunning() {
		t.Fatal("expected Stop to clear running state")
	}
}
