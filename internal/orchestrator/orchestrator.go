// Package orchestrator implements SyncOrchestrator (spec.md §4.4): it
// takes a SyncJob, fans out per-channel publishes concurrently,
// aggregates partial results, and transitions job state. Adapted from
// the teacher's internal/workflow/engine.go async-run pattern
// (context.WithCancel stored per run id, async execution launched in a
// goroutine, cancellation by looking up and invoking the stored cancel
// func) and tomtom215-cartographus's scheduler.go status-aggregation
// shape (Delivered/Failed/Partial counting).
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/signalpress/signalpress/internal/dryrun"
	"github.com/signalpress/signalpress/internal/eventbus"
	"github.com/signalpress/signalpress/internal/jobstore"
	"github.com/signalpress/signalpress/internal/metrics"
	"github.com/signalpress/signalpress/internal/publish"
	"github.com/signalpress/signalpress/internal/ratelimit"
	"github.com/signalpress/signalpress/internal/tone"
	"github.com/signalpress/signalpress/internal/validation"
	"github.com/signalpress/signalpress/pkg/contracts"
	"github.com/signalpress/signalpress/pkg/models"
)

// Config bounds orchestration timing (spec.md §5, §6.4).
type Config struct {
	JobDeadline    time.Duration
	ChannelTimeout time.Duration
	RateLimitWait  time.Duration // how long a channel may wait for a rate-limit token before failing
}

func DefaultConfig() Config {
	return Config{
		JobDeadline:    5 * time.Minute,
		ChannelTimeout: 30 * time.Second,
		RateLimitWait:  60 * time.Second,
	}
}

// Orchestrator implements SyncOrchestrator.
type Orchestrator struct {
	store     jobstore.Store
	bus       *eventbus.Bus
	registry  *publish.Registry
	guard     *dryrun.Guard
	source    contracts.ContentSource
	validator *validation.Validator
	toneMgr   *tone.Manager
	renderer  contracts.Renderer
	rates     *ratelimit.RateLimiters
	cfg       Config

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func New(
	store jobstore.Store,
	bus *eventbus.Bus,
	registry *publish.Registry,
	guard *dryrun.Guard,
	source contracts.ContentSource,
	validator *validation.Validator,
	toneMgr *tone.Manager,
	renderer contracts.Renderer,
	rates *ratelimit.RateLimiters,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		store:     store,
		bus:       bus,
		registry:  registry,
		guard:     guard,
		source:    source,
		validator: validator,
		toneMgr:   toneMgr,
		renderer:  renderer,
		rates:     rates,
		cfg:       cfg,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// SubmitInput is the validated input to Submit (already admitted by the
// Scheduler's single-flight/time-gating logic).
type SubmitInput struct {
	DocumentID   string
	ContentType  models.ContentKind
	Channels     []string
	Template     string
	ScheduledFor *time.Time
	DryRun       bool
	Metadata     map[string]string
	Fingerprint  string
	ContentHash  string
}

// Submit creates a new job in `pending` and returns its id. It does not
// run the job; the Scheduler decides when to call Run.
func (o *Orchestrator) Submit(in SubmitInput) (models.SyncJob, error) {
	now := time.Now().UTC()
	job := models.SyncJob{
		JobID:         uuid.NewString(),
		CorrelationID: uuid.NewString(),
		DocumentID:    in.DocumentID,
		ContentType:   in.ContentType,
		Channels:      in.Channels,
		Template:      in.Template,
		Status:        models.JobPending,
		DryRun:        in.DryRun,
		Fingerprint:   in.Fingerprint,
		ContentHash:   in.ContentHash,
		CreatedAt:     now,
		ScheduledFor:  in.ScheduledFor,
		Metadata:      in.Metadata,
		Results:       make(map[string]models.ChannelResult),
	}
	if err := o.store.Create(job); err != nil {
		return models.SyncJob{}, err
	}
	metrics.JobsSubmittedTotal.Inc()
	return job, nil
}

// CancelJob sets a non-terminal job to cancelled: it prevents any
// not-yet-started channel invocation and allows in-flight publishes to
// finish without upgrading the terminal state away from cancelled.
func (o *Orchestrator) CancelJob(jobID string) bool {
	o.mu.Lock()
	cancel, ok := o.cancels[jobID]
	o.mu.Unlock()

	job, err := o.store.Get(jobID)
	if err != nil || job.Status.IsTerminal() {
		return false
	}

	now := time.Now().UTC()
	if err := o.store.Transition(jobID, job.Status, models.JobCancelled, func(j *models.SyncJob) {
		j.CompletedAt = &now
	}); err != nil {
		return false
	}
	if ok {
		cancel()
	}
	return true
}

// Run executes a due job: fetches and validates content, renders and
// publishes to each channel concurrently, and transitions the job to
// its terminal state. Called by the Scheduler when a job becomes due.
func (o *Orchestrator) Run(parent context.Context, job models.SyncJob) {
	ctx, cancel := context.WithTimeout(parent, o.cfg.JobDeadline)
	o.mu.Lock()
	o.cancels[job.JobID] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, job.JobID)
		o.mu.Unlock()
		cancel()
	}()

	startedAt := time.Now().UTC()
	if err := o.store.Transition(job.JobID, models.JobScheduled, models.JobInProgress, func(j *models.SyncJob) {
		j.StartedAt = &startedAt
	}); err != nil {
		log.Warn().Str("job_id", job.JobID).Err(err).Msg("orchestrator: could not start job")
		return
	}

	item, err := o.resolveItem(ctx, job)
	if err != nil {
		o.failJob(job.JobID, fmt.Sprintf("validation_error: %v", err))
		return
	}
	if item == nil || !item.Published {
		// published:false means "not distributed at all", independent
		// of dry_run (spec.md §9 open question, resolved).
		o.failJob(job.JobID, "validation_error: no published content for document")
		return
	}

	channels := job.Channels
	if len(channels) == 0 {
		channels = o.registry.Channels()
	}

	results := make(map[string]models.ChannelResult, len(channels))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, channel := range channels {
		wg.Add(1)
		go func(channel string) {
			defer wg.Done()
			result := o.runChannel(ctx, job, *item, channel)
			mu.Lock()
			results[channel] = result
			mu.Unlock()
		}(channel)
	}
	wg.Wait()

	o.finish(job.JobID, results)
}

func (o *Orchestrator) runChannel(ctx context.Context, job models.SyncJob, item models.ContentItem, channel string) models.ChannelResult {
	o.emit(job, channel, models.PhaseStarted, nil)

	result := o.dispatch(ctx, job, item, channel)

	o.emit(job, channel, models.PhaseFinished, &result)
	return result
}

func (o *Orchestrator) dispatch(ctx context.Context, job models.SyncJob, item models.ContentItem, channel string) models.ChannelResult {
	if ctx.Err() != nil {
		return models.ChannelResult{Channel: channel, Status: models.ChannelFailed, Error: "cancelled", Timestamp: time.Now().UTC(), Attempts: 1}
	}

	if o.rates != nil && !o.rates.Wait(ctx, channel, o.cfg.RateLimitWait) {
		return models.ChannelResult{Channel: channel, Status: models.ChannelFailed, Error: "rate_limited", Timestamp: time.Now().UTC(), Attempts: 1}
	}

	toned := o.toneMgr.Apply(ctx, item, item.Tone)
	artifact, err := o.renderer.Render(ctx, toned, channel, job.Template)
	if err != nil {
		return models.ChannelResult{Channel: channel, Status: models.ChannelFailed, Error: "internal_error", Timestamp: time.Now().UTC(), Attempts: 1}
	}

	publisher, err := o.registry.Get(channel)
	if err != nil {
		return models.ChannelResult{Channel: channel, Status: models.ChannelFailed, Error: "unknown_channel", Timestamp: time.Now().UTC(), Attempts: 1}
	}

	if issues := publisher.Validate(*artifact); len(issues) > 0 {
		return models.ChannelResult{Channel: channel, Status: models.ChannelFailed, Error: "validation_error", Timestamp: time.Now().UTC(), Attempts: 1}
	}

	chanCtx, cancel := context.WithTimeout(ctx, o.cfg.ChannelTimeout)
	defer cancel()

	dryRun := o.guard.Effective(job.DryRun)
	result, _ := publisher.Publish(chanCtx, *artifact, dryRun)
	if chanCtx.Err() != nil && result.Status != models.ChannelSuccess && result.Status != models.ChannelDryRun {
		result.Status = models.ChannelFailed
		result.Error = "timeout"
	}
	metrics.ChannelPublishesTotal.WithLabelValues(channel, string(result.Status)).Inc()
	metrics.ChannelPublishAttempts.WithLabelValues(channel).Observe(float64(result.Attempts))
	return result
}

func (o *Orchestrator) finish(jobID string, results map[string]models.ChannelResult) {
	successCount, failCount := 0, 0
	for _, r := range results {
		switch r.Status {
		case models.ChannelSuccess, models.ChannelDryRun:
			successCount++
		case models.ChannelFailed:
			failCount++
		}
	}

	var target models.JobStatus
	switch {
	case failCount == 0 && successCount > 0:
		target = models.JobCompleted
	case successCount == 0:
		target = models.JobFailed
	default:
		target = models.JobPartial
	}

	completedAt := time.Now().UTC()
	var startedAt *time.Time
	err := o.store.Transition(jobID, models.JobInProgress, target, func(j *models.SyncJob) {
		j.Results = results
		j.CompletedAt = &completedAt
		startedAt = j.StartedAt
	})
	if err == nil {
		metrics.JobsTerminalTotal.WithLabelValues(string(target)).Inc()
		if startedAt != nil {
			metrics.JobDuration.Observe(completedAt.Sub(*startedAt).Seconds())
		}
	}
	if err != nil {
		// Job may have been cancelled concurrently; it keeps the
		// cancelled state, and the store refuses any patch to a
		// terminal job, so these channel results are not recorded.
		job, getErr := o.store.Get(jobID)
		if getErr == nil && job.Status == models.JobCancelled {
			return
		}
		log.Warn().Str("job_id", jobID).Err(err).Msg("orchestrator: could not finalize job")
		return
	}

	o.emitTerminal(jobID, target)
}

func (o *Orchestrator) resolveItem(ctx context.Context, job models.SyncJob) (*models.ContentItem, error) {
	raw, err := o.source.Fetch(ctx, job.DocumentID)
	if err != nil {
		return nil, err
	}
	items, issues, _ := o.validator.Validate(raw)
	if len(issues) > 0 {
		return nil, fmt.Errorf("%d validation issue(s): %s", len(issues), issues[0].String())
	}
	for _, it := range items {
		if it.Published {
			return &it, nil
		}
	}
	if len(items) > 0 {
		return &items[0], nil
	}
	return nil, nil
}

func (o *Orchestrator) failJob(jobID, reason string) {
	completedAt := time.Now().UTC()
	job, err := o.store.Get(jobID)
	if err != nil {
		return
	}
	_ = o.store.Transition(jobID, job.Status, models.JobFailed, func(j *models.SyncJob) {
		j.Errors = append(j.Errors, reason)
		j.CompletedAt = &completedAt
	})
	metrics.JobsTerminalTotal.WithLabelValues(string(models.JobFailed)).Inc()
	o.emitTerminal(jobID, models.JobFailed)
}

func (o *Orchestrator) emit(job models.SyncJob, channel string, phase models.EventPhase, result *models.ChannelResult) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(models.JobEvent{
		JobID:         job.JobID,
		CorrelationID: job.CorrelationID,
		Channel:       channel,
		Phase:         phase,
		Result:        result,
		Timestamp:     time.Now().UTC(),
	})
}

func (o *Orchestrator) emitTerminal(jobID string, status models.JobStatus) {
	if o.bus == nil {
		return
	}
	job, err := o.store.Get(jobID)
	correlationID := ""
	if err == nil {
		correlationID = job.CorrelationID
	}
	o.bus.Publish(models.JobEvent{
		JobID:         jobID,
		CorrelationID: correlationID,
		Phase:         models.PhaseFinished,
		Status:        status,
		Timestamp:     time.Now().UTC(),
	})
}

// Fingerprint computes spec.md §3's fingerprint: hash(document_id ||
// normalized(channels) || content_hash || scheduled_bucket).
func Fingerprint(documentID string, channels []string, contentHash string, scheduledBucket string) string {
	h := sha256.New()
	h.Write([]byte(documentID))
	h.Write([]byte("|"))
	for _, c := range normalizeChannels(channels) {
		h.Write([]byte(c))
		h.Write([]byte(","))
	}
	h.Write([]byte("|"))
	h.Write([]byte(contentHash))
	h.Write([]byte("|"))
	h.Write([]byte(scheduledBucket))
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeChannels(channels []string) []string {
	out := make([]string, len(channels))
	copy(out, channels)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
