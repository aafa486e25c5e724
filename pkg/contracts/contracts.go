// Package contracts defines the capability boundaries SignalPress's core
// depends on but does not implement: content fetching, rendering, and
// the outbound channel backends. Each boundary ships a default/fixture
// implementation suitable for local runs and tests; production
// deployments are expected to swap in real clients that satisfy the
// same interface.
package contracts

import (
	"context"
	"time"

	"github.com/signalpress/signalpress/pkg/models"
)

// ── ContentSource ────────────────────────────────────────────

// ContentSource fetches the raw structured content for a document.
// Real implementations would talk to Google Docs, Notion, or a URL
// reader; this is an external capability, out of core scope.
type ContentSource interface {
	Fetch(ctx context.Context, documentID string) (*models.RawContent, error)
}

// ── Renderer ─────────────────────────────────────────────────

// Renderer produces a channel-specific artifact from a validated
// ContentItem and an optional template id.
type Renderer interface {
	Render(ctx context.Context, item models.ContentItem, channel, template string) (*models.ContentArtifact, error)
}

// ── ChannelBackend ───────────────────────────────────────────

// ChannelBackend is the raw outbound capability a channel Publisher
// calls into (CRM for email, Platform API for web, Twitter/LinkedIn/
// Facebook APIs for social). It has no knowledge of retries, circuit
// breaking, or dry-run — those are ResilientPublisher concerns.
type ChannelBackend interface {
	// Send performs the real side effect and returns a ChannelResult
	// with status either success or failed (never dry_run; the
	// Publisher layer is responsible for short-circuiting before
	// ever calling Send when dry-run is active).
	Send(ctx context.Context, artifact models.ContentArtifact) (models.ChannelResult, error)
}

// ── Publisher ────────────────────────────────────────────────

// Publisher is the closed, explicit capability set every channel
// implements. There is no reflective discovery: each channel is
// registered by id in a Publisher registry at startup.
type Publisher interface {
	Channel() string
	Validate(artifact models.ContentArtifact) []string
	Preview(ctx context.Context, artifact models.ContentArtifact) (models.ChannelResult, error)
	Publish(ctx context.Context, artifact models.ContentArtifact, dryRun bool) (models.ChannelResult, error)
	Limits() models.ChannelLimits
}

// ── CacheTier ────────────────────────────────────────────────

// CacheTier is one layer of the cache (local, shared, cdn, api). Each
// tier can store, fetch, and invalidate independently; CacheCoordinator
// builds values on a miss and fans out across all configured tiers.
type CacheTier interface {
	Name() string
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Invalidate(ctx context.Context, keys []string, pattern string, tags []string) (int, error)
	// Ping reports whether the tier is reachable, without touching
	// hit/miss stats the way a real Get would.
	Ping(ctx context.Context) error
}

// ── Identity / auth ──────────────────────────────────────────

// Identity represents an authenticated caller of the job submission API.
type Identity struct {
	Subject     string            `json:"subject"`
	Provider    string            `json:"provider"`
	Role        string            `json:"role"`
	DisplayName string            `json:"display_name,omitempty"`
	Claims      map[string]string `json:"claims,omitempty"`
	ExpiresAt   time.Time         `json:"expires_at,omitempty"`
}

// AuthProvider authenticates an HTTP request and returns an Identity.
//
// Chain contract:
//   - (*Identity, nil) -> authenticated, stop walking the chain
//   - (nil, nil)       -> this provider doesn't handle this request, try next
//   - (nil, error)     -> auth attempted but failed, reject immediately
type AuthProvider interface {
	Name() string
	Enabled() bool
	Authenticate(ctx context.Context, token string) (*Identity, error)
}
