// Package handlers implements spec.md §6.1's job submission API as HTTP
// handlers: SubmitSyncJob, GetSyncJob, ListSyncJobs, CancelSyncJob,
// RetrySyncJob, ValidateContent, InvalidateCache, GetCacheStats,
// Health, Ready.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/signalpress/signalpress/internal/cache"
	"github.com/signalpress/signalpress/internal/jobstore"
	"github.com/signalpress/signalpress/internal/orchestrator"
	"github.com/signalpress/signalpress/internal/publish"
	"github.com/signalpress/signalpress/internal/scheduler"
	"github.com/signalpress/signalpress/internal/validation"
	"github.com/signalpress/signalpress/pkg/middleware"
	"github.com/signalpress/signalpress/pkg/models"
)

type Handlers struct {
	Store        jobstore.Store
	Orchestrator *orchestrator.Orchestrator
	Scheduler    *scheduler.Scheduler
	Validator    *validation.Validator
	Cache        *cache.Coordinator
	LocalTier    *cache.LocalTier
	Registry     *publish.Registry
	Version      string
}

// ── request/response shapes ──────────────────────────────────

type submitRequest struct {
	DocumentID   string            `json:"document_id"`
	Channels     []string          `json:"channels"`
	ContentType  string            `json:"content_type"`
	Template     string            `json:"template,omitempty"`
	ScheduledFor string            `json:"scheduled_for,omitempty"`
	DryRun       bool              `json:"dry_run"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ContentHash  string            `json:"content_hash,omitempty"`
}

type submitResponse struct {
	JobID         string     `json:"job_id"`
	CorrelationID string     `json:"correlation_id"`
	Status        models.JobStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ScheduledFor  *time.Time `json:"scheduled_for,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, kind, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":          kind,
		"message":        message,
		"correlation_id": middleware.GetCorrelationID(r.Context()),
	})
}

// SubmitSyncJob handles POST /api/v1/sync-jobs.
func (h *Handlers) SubmitSyncJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.DocumentID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "document_id is required")
		return
	}
	if len(req.Channels) == 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "channels must be non-empty")
		return
	}

	var scheduledFor *time.Time
	scheduledBucket := "immediate"
	if req.ScheduledFor != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledFor)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "scheduled_for must be UTC ISO-8601")
			return
		}
		t = t.UTC()
		scheduledFor = &t
		scheduledBucket = t.Truncate(time.Hour).Format(time.RFC3339)
	}

	fingerprint := orchestrator.Fingerprint(req.DocumentID, req.Channels, req.ContentHash, scheduledBucket)

	job, err := h.Orchestrator.Submit(orchestrator.SubmitInput{
		DocumentID:   req.DocumentID,
		ContentType:  models.ContentKind(req.ContentType),
		Channels:     req.Channels,
		Template:     req.Template,
		ScheduledFor: scheduledFor,
		DryRun:       req.DryRun,
		Metadata:     req.Metadata,
		Fingerprint:  fingerprint,
		ContentHash:  req.ContentHash,
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "unavailable", err.Error())
		return
	}

	admitted, err := h.Scheduler.Admit(job)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "unavailable", err.Error())
		return
	}

	if admitted.Deduplicated {
		existing, err := h.Store.Get(admitted.JobID)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "unavailable", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, submitResponse{
			JobID: existing.JobID, CorrelationID: existing.CorrelationID,
			Status: existing.Status, CreatedAt: existing.CreatedAt, ScheduledFor: existing.ScheduledFor,
		})
		return
	}

	// A job queued behind an in-flight fingerprint-mate stays pending, so
	// report the stored status rather than assuming scheduled.
	status := models.JobScheduled
	if current, err := h.Store.Get(job.JobID); err == nil {
		status = current.Status
	}
	writeJSON(w, http.StatusAccepted, submitResponse{
		JobID: job.JobID, CorrelationID: job.CorrelationID,
		Status: status, CreatedAt: job.CreatedAt, ScheduledFor: job.ScheduledFor,
	})
}

// GetSyncJob handles GET /api/v1/sync-jobs/{id}.
func (h *Handlers) GetSyncJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.Store.Get(id)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ListSyncJobs handles GET /api/v1/sync-jobs.
func (h *Handlers) ListSyncJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := jobstore.ListFilter{}
	if s := q.Get("status"); s != "" {
		status := models.JobStatus(s)
		filter.Status = &status
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			filter.Limit = n
		}
	}
	if o := q.Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil {
			filter.Offset = n
		}
	}

	jobs, total, err := h.Store.List(filter)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs, "total": total})
}

// CancelSyncJob handles POST /api/v1/sync-jobs/{id}/cancel.
func (h *Handlers) CancelSyncJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cancelled := h.Orchestrator.CancelJob(id)
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// RetrySyncJob handles POST /api/v1/sync-jobs/{id}/retry. It creates a
// new job with identical inputs; the old job is unchanged.
func (h *Handlers) RetrySyncJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	old, err := h.Store.Get(id)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
		return
	}

	scheduledBucket := "immediate"
	if old.ScheduledFor != nil {
		scheduledBucket = old.ScheduledFor.Truncate(time.Hour).Format(time.RFC3339)
	}
	fingerprint := orchestrator.Fingerprint(old.DocumentID, old.Channels, old.ContentHash, scheduledBucket+"-retry-"+uuid.NewString())

	job, err := h.Orchestrator.Submit(orchestrator.SubmitInput{
		DocumentID: old.DocumentID, ContentType: old.ContentType, Channels: old.Channels,
		Template: old.Template, ScheduledFor: old.ScheduledFor, DryRun: old.DryRun,
		Metadata: old.Metadata, Fingerprint: fingerprint, ContentHash: old.ContentHash,
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "unavailable", err.Error())
		return
	}
	if _, err := h.Scheduler.Admit(job); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{JobID: job.JobID, CorrelationID: job.CorrelationID, Status: models.JobScheduled, CreatedAt: job.CreatedAt})
}

// ValidateContent handles POST /api/v1/validate.
func (h *Handlers) ValidateContent(w http.ResponseWriter, r *http.Request) {
	var raw models.RawContent
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	_, issues, warnings := h.Validator.Validate(&raw)
	issueStrings := make([]string, len(issues))
	for i, iss := range issues {
		issueStrings[i] = iss.String()
	}
	warningStrings := make([]string, len(warnings))
	for i, w2 := range warnings {
		warningStrings[i] = w2.String()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"is_valid": len(issues) == 0,
		"issues":   issueStrings,
		"warnings": warningStrings,
	})
}

// InvalidateCache handles POST /api/v1/cache/invalidate.
func (h *Handlers) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keys    []string `json:"keys"`
		Pattern string   `json:"pattern"`
		Tags    []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	results := h.Cache.Invalidate(r.Context(), req.Keys, req.Pattern, req.Tags)
	total := 0
	targets := make([]string, len(results))
	for i, res := range results {
		total += res.Count
		targets[i] = res.Tier
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"invalidated": total, "targets": targets, "timestamp": time.Now().UTC(), "results": results,
	})
}

// GetCacheStats handles GET /api/v1/cache/stats.
func (h *Handlers) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Cache.Stats(h.LocalTier))
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready: real aggregate checks on the job store, every
// configured cache tier, and a circuit-breaker snapshot per channel.
// Only job store and cache reachability affect the ready verdict; an
// open circuit reflects one channel's backend being degraded, not the
// submission API itself being unavailable, so it's reported but doesn't
// flip readiness.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"jobstore": "ok"}
	if _, _, err := h.Store.List(jobstore.ListFilter{Limit: 1}); err != nil {
		checks["jobstore"] = "error: " + err.Error()
	}

	cacheChecks := h.Cache.Ping(r.Context())
	for tier, status := range cacheChecks {
		checks["cache:"+tier] = status
	}

	ready := true
	for _, v := range checks {
		if v != "ok" {
			ready = false
		}
	}

	var circuits map[string]string
	if h.Registry != nil {
		circuits = h.Registry.CircuitSnapshot()
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"ready": ready, "checks": checks, "circuits": circuits,
	})
}

// Version handles GET /version.
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
}
