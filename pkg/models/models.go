// Package models holds the shared data types passed between SignalPress
// components: content items, sync jobs, channel results, and the raw
// content bundle produced by a ContentSource.
package models

import "time"

// ── ContentItem ──────────────────────────────────────────────

type ContentKind string

const (
	KindUpdate          ContentKind = "update"
	KindBlog            ContentKind = "blog"
	KindAnnouncement    ContentKind = "announcement"
	KindSessionSummary  ContentKind = "session_summary"
)

type Tone string

const (
	ToneNeutral      Tone = "neutral"
	ToneProfessional Tone = "professional"
	ToneCommunity    Tone = "community"
	ToneCasual       Tone = "casual"
)

// ContentItem is a validated unit of content. It is immutable once
// produced by the Validator.
type ContentItem struct {
	ID           string            `json:"id" db:"id"`
	Kind         ContentKind       `json:"kind" db:"kind"`
	Title        string            `json:"title" db:"title"`
	Body         string            `json:"body" db:"body"`
	Published    bool              `json:"published" db:"published"`
	Featured     bool              `json:"featured,omitempty" db:"featured"`
	Priority     int               `json:"priority" db:"priority"`
	Channels     []string          `json:"channels,omitempty"`
	ScheduledFor *time.Time        `json:"scheduled_for,omitempty" db:"scheduled_for"`
	Template     string            `json:"template,omitempty" db:"template"`
	Tone         Tone              `json:"tone,omitempty" db:"tone"`
	Tags         []string          `json:"tags,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`

	// ReadingTime is computed by the Validator (blog kind only), never
	// accepted from input. 200 words/minute, minimum 1.
	ReadingTime int `json:"reading_time,omitempty"`
}

// RawContent is the unparsed bundle a ContentSource returns for a
// document identifier.
type RawContent struct {
	DocumentID string                   `json:"document_id"`
	Sections   []map[string]interface{} `json:"sections"`
	FetchedAt  time.Time                `json:"fetched_at"`
}

// ── ChannelResult ────────────────────────────────────────────

type ChannelStatus string

const (
	ChannelSuccess ChannelStatus = "success"
	ChannelFailed  ChannelStatus = "failed"
	ChannelSkipped ChannelStatus = "skipped"
	ChannelDryRun  ChannelStatus = "dry_run"
)

type ChannelResult struct {
	Channel   string        `json:"channel"`
	Status    ChannelStatus `json:"status"`
	Sent      int           `json:"sent,omitempty"`
	ContentID string        `json:"content_id,omitempty"`
	URL       string        `json:"url,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Attempts  int           `json:"attempts"`
}

// ── SyncJob ──────────────────────────────────────────────────

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobScheduled  JobStatus = "scheduled"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobPartial    JobStatus = "partial"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are permitted.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobPartial, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

type SyncJob struct {
	JobID         string                   `json:"job_id" db:"job_id"`
	CorrelationID string                   `json:"correlation_id" db:"correlation_id"`
	DocumentID    string                   `json:"document_id" db:"document_id"`
	ContentType   ContentKind              `json:"content_type" db:"content_type"`
	Channels      []string                 `json:"channels"`
	Template      string                   `json:"template,omitempty"`
	Status        JobStatus                `json:"status" db:"status"`
	DryRun        bool                     `json:"dry_run"`
	Fingerprint   string                   `json:"fingerprint" db:"fingerprint"`
	ContentHash   string                   `json:"content_hash" db:"content_hash"`
	CreatedAt     time.Time                `json:"created_at" db:"created_at"`
	ScheduledFor  *time.Time               `json:"scheduled_for,omitempty" db:"scheduled_for"`
	StartedAt     *time.Time               `json:"started_at,omitempty" db:"started_at"`
	CompletedAt   *time.Time               `json:"completed_at,omitempty" db:"completed_at"`
	Results       map[string]ChannelResult `json:"results,omitempty"`
	Errors        []string                 `json:"errors,omitempty"`
	Metadata      map[string]string        `json:"metadata,omitempty"`
}

// ── JobEvent ─────────────────────────────────────────────────

type EventPhase string

const (
	PhaseStarted  EventPhase = "started"
	PhaseProgress EventPhase = "progress"
	PhaseFinished EventPhase = "finished"
)

type JobEvent struct {
	JobID         string         `json:"job_id"`
	CorrelationID string         `json:"correlation_id"`
	Channel       string         `json:"channel,omitempty"`
	Phase         EventPhase     `json:"phase"`
	Status        JobStatus      `json:"status,omitempty"`
	Result        *ChannelResult `json:"result,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// ── Circuit breaker state (for external inspection via Health()) ────

type CircuitStateKind string

const (
	CircuitClosed   CircuitStateKind = "closed"
	CircuitOpen     CircuitStateKind = "open"
	CircuitHalfOpen CircuitStateKind = "half_open"
)

// ── Channel limits ───────────────────────────────────────────

type ChannelLimits struct {
	SubjectMax  int `json:"subject_max,omitempty"`
	BodyMax     int `json:"body_max,omitempty"`
	RatePerHour int `json:"rate_per_hour"`
	BatchSize   int `json:"batch_size"`
	MediaLimit  int `json:"media_limit,omitempty"`
}

// ── Artifact ─────────────────────────────────────────────────

// ContentArtifact is the immutable, channel-specific rendered payload a
// Publisher receives. Publishers never mutate a ContentItem or SyncJob;
// they only ever see this view.
type ContentArtifact struct {
	ItemID    string
	Channel   string
	Subject   string
	HTML      string
	Text      string
	// Link is the canonical URL the artifact points back to (e.g. the
	// web channel's published URL). The Twitter channel composes it
	// into Text and never truncates it; other channels leave it empty.
	Link       string
	Recipients []string
	Tags       []string
	Metadata   map[string]string
}
