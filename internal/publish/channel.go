// Package publish implements the Publisher abstraction of spec.md §4.2:
// the closed set of channel Publishers (Email, Web, SocialTwitter,
// SocialLinkedIn, SocialFacebook), each exposing validate/preview/
// publish/limits, plus the ResilientPublisher decorator (§4.3) that
// adds retry, circuit breaking, and dead-lettering. Per-channel rate
// limiting lives in internal/ratelimit and is applied by the Orchestrator.
package publish

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signalpress/signalpress/internal/validation"
	"github.com/signalpress/signalpress/pkg/contracts"
	"github.com/signalpress/signalpress/pkg/models"
)

const (
	ChannelEmail           = "email"
	ChannelWeb             = "web"
	ChannelSocialTwitter   = "social_twitter"
	ChannelSocialLinkedIn  = "social_linkedin"
	ChannelSocialFacebook  = "social_facebook"
)

// ChannelPublisher implements the Publisher contract for one channel by
// delegating the real side effect to a ChannelBackend. Observable side
// effects are exclusively the network call inside Publish and the
// structured log line it emits; no channel mutates a ContentItem or
// SyncJob.
type ChannelPublisher struct {
	channel string
	limits  models.ChannelLimits
	backend contracts.ChannelBackend

	// webSeen tracks content ids already upserted, for the idempotent
	// web publish contract: repeated publishes of identical content
	// return the prior content_id with status=success and no new side
	// effect. Guarded by mu since one ChannelPublisher instance is
	// shared across concurrent orchestrator runs (spec.md §5:
	// Publishers are re-entrant, no shared mutable state races).
	mu      sync.Mutex
	webSeen map[string]models.ChannelResult
}

func NewChannelPublisher(channel string, limits models.ChannelLimits, backend contracts.ChannelBackend) *ChannelPublisher {
	return &ChannelPublisher{
		channel: channel,
		limits:  limits,
		backend: backend,
		webSeen: make(map[string]models.ChannelResult),
	}
}

func (p *ChannelPublisher) Channel() string { return p.channel }

func (p *ChannelPublisher) Limits() models.ChannelLimits { return p.limits }

// Validate applies channel-specific constraints: subject length for
// email, 280 code-points for Twitter after composing text+hashtags,
// nothing extra for web/LinkedIn/Facebook beyond presence of text.
func (p *ChannelPublisher) Validate(artifact models.ContentArtifact) []string {
	var issues []string
	switch p.channel {
	case ChannelEmail:
		if p.limits.SubjectMax > 0 && len(artifact.Subject) > p.limits.SubjectMax {
			issues = append(issues, fmt.Sprintf("subject exceeds %d characters", p.limits.SubjectMax))
		}
	case ChannelSocialTwitter:
		if validation.CodePointLen(artifact.Text) > 280 {
			issues = append(issues, "text exceeds 280 code points")
		}
	}
	if artifact.Text == "" && artifact.HTML == "" {
		issues = append(issues, "artifact has no content")
	}
	return issues
}

// Preview is pure and side-effect-free: same shape as Publish's result
// but status=dry_run and no external call.
func (p *ChannelPublisher) Preview(_ context.Context, artifact models.ContentArtifact) (models.ChannelResult, error) {
	return models.ChannelResult{
		Channel:   p.channel,
		Status:    models.ChannelDryRun,
		ContentID: artifact.ItemID,
		Timestamp: time.Now().UTC(),
		Attempts:  1,
	}, nil
}

// Publish performs the real send when dryRun is false; otherwise it
// behaves exactly like Preview, recording status=dry_run.
func (p *ChannelPublisher) Publish(ctx context.Context, artifact models.ContentArtifact, dryRun bool) (models.ChannelResult, error) {
	if dryRun {
		return p.Preview(ctx, artifact)
	}

	if p.channel == ChannelWeb {
		p.mu.Lock()
		prior, ok := p.webSeen[artifact.ItemID]
		p.mu.Unlock()
		if ok {
			return prior, nil
		}
	}

	result, err := p.backend.Send(ctx, artifact)
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}
	if result.Attempts == 0 {
		result.Attempts = 1
	}

	if p.channel == ChannelWeb && result.Status == models.ChannelSuccess {
		p.mu.Lock()
		p.webSeen[artifact.ItemID] = result
		p.mu.Unlock()
	}

	return result, err
}

// DefaultLimits returns spec-reasonable per-channel limits, overridable
// by configuration (spec.md §6.4 channel_rate_limits).
func DefaultLimits(channel string, ratePerHour int) models.ChannelLimits {
	switch channel {
	case ChannelEmail:
		return models.ChannelLimits{SubjectMax: 100, BatchSize: 500, RatePerHour: ratePerHour}
	case ChannelSocialTwitter:
		return models.ChannelLimits{BodyMax: 280, BatchSize: 1, RatePerHour: ratePerHour}
	case ChannelWeb:
		return models.ChannelLimits{BatchSize: 1, RatePerHour: ratePerHour}
	default:
		return models.ChannelLimits{BatchSize: 1, RatePerHour: ratePerHour}
	}
}
