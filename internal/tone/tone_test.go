package tone

import (
	"context"
	"errors"
	"testing"

	"github.com/signalpress/signalpress/pkg/models"
)

type stubEnhancer struct {
	text string
	err  error
}

func (s stubEnhancer) Enhance(_ context.Context, _ string, _ models.Tone) (string, error) {
	return s.text, s.err
}

func TestApplyProfessionalDoesNotMutateInput(t *testing.T) {
	m := New(nil)
	item := models.ContentItem{Title: "gonna ship it!", Body: "wanna launch!"}

	out := m.Apply(context.Background(), item, models.ToneProfessional)

	if item.Title != "gonna ship it!" {
		t.Fatalf("input item was mutated: %q", item.Title)
	}
	if out.Title != "going to ship it." {
		t.Fatalf("got title %q", out.Title)
	}
	if out.Body != "want to launch." {
		t.Fatalf("got body %q", out.Body)
	}
}

func TestApplyCommunityAddsEmoji(t *testing.T) {
	m := New(nil)
	out := m.Apply(context.Background(), models.ContentItem{Body: "new release is live"}, models.ToneCommunity)
	if out.Body != "new release is live 🎉" {
		t.Fatalf("got %q", out.Body)
	}
}

func TestApplyCasualContractions(t *testing.T) {
	m := New(nil)
	out := m.Apply(context.Background(), models.ContentItem{Body: "we cannot do not will not"}, models.ToneCasual)
	if out.Body != "we can't don't won't" {
		t.Fatalf("got %q", out.Body)
	}
}

func TestApplyEnhancerOverridesBody(t *testing.T) {
	m := New(stubEnhancer{text: "rewritten by the enhancer"})
	out := m.Apply(context.Background(), models.ContentItem{Body: "original"}, models.ToneProfessional)
	if out.Body != "rewritten by the enhancer" {
		t.Fatalf("expected enhancer output, got %q", out.Body)
	}
}

func TestApplyEnhancerErrorFallsBackToPure(t *testing.T) {
	m := New(stubEnhancer{err: errors.New("boom")})
	out := m.Apply(context.Background(), models.ContentItem{Body: "gonna fall back!"}, models.ToneProfessional)
	if out.Body != "going to fall back." {
		t.Fatalf("expected pure fallback, got %q", out.Body)
	}
}

func TestApplyEnhancerEmptyStringFallsBackToPure(t *testing.T) {
	m := New(stubEnhancer{text: ""})
	out := m.Apply(context.Background(), models.ContentItem{Body: "gonna fall back!"}, models.ToneProfessional)
	if out.Body != "going to fall back." {
		t.Fatalf("expected pure fallback on empty enhancer output, got %q", out.Body)
	}
}
