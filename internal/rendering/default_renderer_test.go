package rendering

import (
	"context"
	"strings"
	"testing"

	"github.com/signalpress/signalpress/internal/validation"
	"github.com/signalpress/signalpress/pkg/models"
)

func TestRenderTwitterComposesTextHashtagsLink(t *testing.T) {
	r := New()
	item := models.ContentItem{ID: "c1", Title: "Shipping the new release", Tags: []string{"launch", "go"}}

	artifact, err := r.Render(context.Background(), item, "social_twitter", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if artifact.Link != "/updates/c1" {
		t.Fatalf("expected canonical link, got %q", artifact.Link)
	}
	if !strings.Contains(artifact.Text, "#launch") || !strings.Contains(artifact.Text, "#go") {
		t.Fatalf("expected hashtags composed into text, got %q", artifact.Text)
	}
	if !strings.HasSuffix(artifact.Text, artifact.Link) {
		t.Fatalf("expected link to be the last component, got %q", artifact.Text)
	}
}

func TestRenderTwitterTruncatesTextOnlyWhenOverLimit(t *testing.T) {
	r := New()
	longTitle := strings.Repeat("word ", 100) // far over 280 code points
	item := models.ContentItem{ID: "c2", Title: longTitle, Tags: []string{"breaking", "update"}}

	artifact, err := r.Render(context.Background(), item, "social_twitter", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := validation.CodePointLen(artifact.Text); got > 280 {
		t.Fatalf("expected composed text within 280 code points, got %d", got)
	}
	if !strings.Contains(artifact.Text, "#breaking") || !strings.Contains(artifact.Text, "#update") {
		t.Fatalf("hashtags must survive truncation untouched, got %q", artifact.Text)
	}
	if !strings.Contains(artifact.Text, "/updates/c2") {
		t.Fatalf("link must survive truncation untouched, got %q", artifact.Text)
	}
}

func TestRenderTwitterPublisherValidatesComposedArtifact(t *testing.T) {
	r := New()
	longTitle := strings.Repeat("x", 5000)
	item := models.ContentItem{ID: "c3", Title: longTitle}

	artifact, err := r.Render(context.Background(), item, "social_twitter", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if validation.CodePointLen(artifact.Text) > 280 {
		t.Fatalf("renderer must truncate before the artifact ever reaches Publisher.Validate, got %d code points", validation.CodePointLen(artifact.Text))
	}
}
