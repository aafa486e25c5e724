// Package tone applies tone transformations to ContentItem text; there
// is no audience-segment personalization. The pure rule-based path is the mandatory contract (spec.md §2
// calls ToneManager a "pure transformation"); an optional LLM-assisted
// enhancement path can be wired in, but it always falls back to the
// pure path on any error or when no provider is configured, so the
// invariant holds regardless of deployment.
package tone

import (
	"context"
	"strings"

	"github.com/signalpress/signalpress/pkg/models"
)

// Enhancer is the optional LLM-assisted rewrite capability, adapted
// from the teacher's ProviderDriver pattern (internal/router/router.go)
// down to the single call SignalPress needs: rewrite text for a tone.
type Enhancer interface {
	Enhance(ctx context.Context, text string, tone models.Tone) (string, error)
}

// Manager applies tone transformations. It is safe for concurrent use.
type Manager struct {
	enhancer Enhancer
}

// New creates a Manager. enhancer may be nil, in which case only the
// pure path runs.
func New(enhancer Enhancer) *Manager {
	return &Manager{enhancer: enhancer}
}

// Apply returns a copy of item with Title/Body transformed for the
// requested tone. It takes no audience segment, so every audience gets
// the same text. It never mutates item in place.
func (m *Manager) Apply(ctx context.Context, item models.ContentItem, tone models.Tone) models.ContentItem {
	out := item
	out.Tone = tone

	out.Title = applyPure(item.Title, tone)
	out.Body = applyPure(item.Body, tone)

	if m.enhancer == nil {
		return out
	}

	enhanced, err := m.enhancer.Enhance(ctx, out.Body, tone)
	if err != nil || enhanced == "" {
		// Fall back silently to the pure transform; the pure path is
		// the contract, the enhancer is best-effort.
		return out
	}
	out.Body = enhanced
	return out
}

// applyPure is the deterministic, side-effect-free tone transform.
func applyPure(text string, tone models.Tone) string {
	switch tone {
	case models.ToneProfessional:
		return professionalize(text)
	case models.ToneCommunity:
		return communityize(text)
	case models.ToneCasual:
		return casualize(text)
	default:
		return text
	}
}

func professionalize(text string) string {
	replacer := strings.NewReplacer(
		"gonna", "going to",
		"wanna", "want to",
		"!", ".",
	)
	return replacer.Replace(text)
}

func communityize(text string) string {
	if strings.HasSuffix(strings.TrimSpace(text), ".") {
		return text
	}
	return text + " 🎉"
}

func casualize(text string) string {
	replacer := strings.NewReplacer(
		"cannot", "can't",
		"do not", "don't",
		"will not", "won't",
	)
	return replacer.Replace(text)
}
