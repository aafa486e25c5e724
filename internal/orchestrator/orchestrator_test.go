package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/signalpress/signalpress/internal/dryrun"
	"github.com/signalpress/signalpress/internal/eventbus"
	"github.com/signalpress/signalpress/internal/jobstore"
	"github.com/signalpress/signalpress/internal/publish"
	"github.com/signalpress/signalpress/internal/ratelimit"
	"github.com/signalpress/signalpress/internal/rendering"
	"github.com/signalpress/signalpress/internal/sourcing"
	"github.com/signalpress/signalpress/internal/tone"
	"github.com/signalpress/signalpress/internal/validation"
	"github.com/signalpress/signalpress/pkg/models"
)

func testSection(id, title string) map[string]interface{} {
	return map[string]interface{}{
		"id": id, "kind": "update", "title": title, "body": "body text",
		"published": true,
	}
}

// harness wires a minimal, fully in-memory Orchestrator: a fixture
// source/renderer/tone manager and a registry of plain (non-resilient)
// ChannelPublishers backed by FixtureBackend, so tests can script each
// channel's outcome directly.
type harness struct {
	store    jobstore.Store
	source   *sourcing.FixtureSource
	registry *publish.Registry
	orch     *Orchestrator
}

func newHarness(t *testing.T, channels []string) *harness {
	t.Helper()
	store := jobstore.NewMemoryStore()
	source := sourcing.NewFixtureSource()
	registry := publish.NewRegistry()
	for _, c := range channels {
		backend := publish.NewFixtureBackend(c)
		limits := publish.DefaultLimits(c, 1000)
		registry.Register(publish.NewChannelPublisher(c, limits, backend))
	}
	validator := validation.New(channels)
	rates := ratelimit.NewRateLimiters()
	for _, c := range channels {
		rates.Configure(c, 1000, 10)
	}
	orch := New(store, eventbus.New(), registry, dryrun.New(false), source, validator, tone.New(nil), rendering.New(), rates, Config{
		JobDeadline:    5 * time.Second,
		ChannelTimeout: 2 * time.Second,
		RateLimitWait:  time.Second,
	})
	return &harness{store: store, source: source, registry: registry, orch: orch}
}

func (h *harness) submitAndSchedule(t *testing.T, channels []string) models.SyncJob {
	t.Helper()
	job, err := h.orch.Submit(SubmitInput{DocumentID: "doc-1", ContentType: models.KindUpdate, Channels: channels})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := h.store.Transition(job.JobID, models.JobPending, models.JobScheduled, nil); err != nil {
		t.Fatalf("Transition to scheduled: %v", err)
	}
	job, _ = h.store.Get(job.JobID)
	return job
}

func TestRunAllChannelsSucceedCompletesJob(t *testing.T) {
	h := newHarness(t, []string{publish.ChannelEmail, publish.ChannelWeb})
	h.source.Seed("doc-1", []map[string]interface{}{testSection("c1", "Hello")})
	job := h.submitAndSchedule(t, []string{publish.ChannelEmail, publish.ChannelWeb})

	h.orch.Run(context.Background(), job)

	got, err := h.store.Get(job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.JobCompleted {
		t.Fatalf("expected completed, got %s (results: %+v)", got.Status, got.Results)
	}
	if len(got.Results) != 2 {
		t.Fatalf("expected 2 channel results, got %d", len(got.Results))
	}
}

func TestRunPartialFailureAggregatesAsPartial(t *testing.T) {
	h := newHarness(t, []string{publish.ChannelEmail, publish.ChannelWeb})
	h.source.Seed("doc-1", []map[string]interface{}{testSection("c1", "Hello")})

	// Drive the web channel's backend into permanent failure by
	// re-registering it wrapped around a backend scripted to fail every
	// call (more than the single attempt Run makes per channel).
	fb := publish.NewFixtureBackend(publish.ChannelWeb)
	fb.ScriptFailures(5)
	h.registry.Register(publish.NewChannelPublisher(publish.ChannelWeb, publish.DefaultLimits(publish.ChannelWeb, 1000), fb))

	job := h.submitAndSchedule(t, []string{publish.ChannelEmail, publish.ChannelWeb})
	h.orch.Run(context.Background(), job)

	got, err := h.store.Get(job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.JobPartial {
		t.Fatalf("expected partial, got %s (results: %+v)", got.Status, got.Results)
	}
	if got.Results[publish.ChannelEmail].Status != models.ChannelSuccess {
		t.Fatalf("expected email to succeed, got %+v", got.Results[publish.ChannelEmail])
	}
	if got.Results[publish.ChannelWeb].Status != models.ChannelFailed {
		t.Fatalf("expected web to fail, got %+v", got.Results[publish.ChannelWeb])
	}
}

func TestRunAllChannelsFailAggregatesAsFailed(t *testing.T) {
	h := newHarness(t, []string{publish.ChannelEmail})
	h.source.Seed("doc-1", []map[string]interface{}{testSection("c1", "Hello")})

	fb := publish.NewFixtureBackend(publish.ChannelEmail)
	fb.ScriptFailures(5)
	h.registry.Register(publish.NewChannelPublisher(publish.ChannelEmail, publish.DefaultLimits(publish.ChannelEmail, 1000), fb))

	job := h.submitAndSchedule(t, []string{publish.ChannelEmail})
	h.orch.Run(context.Background(), job)

	got, _ := h.store.Get(job.JobID)
	if got.Status != models.JobFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
}

func TestCancelJobDuringRunKeepsCancelledTerminalState(t *testing.T) {
	h := newHarness(t, []string{publish.ChannelEmail})
	h.source.Seed("doc-1", []map[string]interface{}{testSection("c1", "Hello")})
	job := h.submitAndSchedule(t, []string{publish.ChannelEmail})

	if err := h.store.Transition(job.JobID, models.JobScheduled, models.JobInProgress, nil); err != nil {
		t.Fatalf("Transition to in_progress: %v", err)
	}
	if !h.orch.CancelJob(job.JobID) {
		t.Fatal("expected CancelJob to succeed on an in-progress job")
	}

	got, _ := h.store.Get(job.JobID)
	if got.Status != models.JobCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}

	// finish() must not upgrade a concurrently cancelled job away from
	// the cancelled terminal state.
	h.orch.finish(job.JobID, map[string]models.ChannelResult{
		publish.ChannelEmail: {Channel: publish.ChannelEmail, Status: models.ChannelSuccess},
	})

	got, _ = h.store.Get(job.JobID)
	if got.Status != models.JobCancelled {
		t.Fatalf("expected cancelled to survive finish(), got %s", got.Status)
	}
}

func TestRunUnpublishedItemFailsJob(t *testing.T) {
	h := newHarness(t, []string{publish.ChannelEmail})
	h.source.Seed("doc-1", []map[string]interface{}{
		{"id": "c1", "kind": "update", "title": "Hello", "body": "body", "published": false},
	})
	job := h.submitAndSchedule(t, []string{publish.ChannelEmail})

	h.orch.Run(context.Background(), job)

	got, _ := h.store.Get(job.JobID)
	if got.Status != models.JobFailed {
		t.Fatalf("expected failed for unpublished content, got %s", got.Status)
	}
	if len(got.Errors) == 0 {
		t.Fatal("expected a recorded failure reason")
	}
}

func TestFingerprintIsStableAndOrderIndependent(t *testing.T) {
	a := Fingerprint("doc-1", []string{"email", "web"}, "hash-1", "2026-W01")
	b := Fingerprint("doc-1", []string{"web", "email"}, "hash-1", "2026-W01")
	if a != b {
		t.Fatalf("expected fingerprint to be independent of channel order: %s != %s", a, b)
	}

	c := Fingerprint("doc-1", []string{"email", "web"}, "hash-2", "2026-W01")
	if a == c {
		t.Fatal("expected a different content hash to change the fingerprint")
	}
}
