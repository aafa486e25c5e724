// Package rendering provides a default Renderer implementation. The
// templating/rendering language itself is out of scope (spec.md §1
// non-goals); this renderer produces plain channel-appropriate
// artifacts good enough to drive the Publisher contracts and tests.
package rendering

import (
	"context"
	"fmt"
	"strings"

	"github.com/signalpress/signalpress/internal/validation"
	"github.com/signalpress/signalpress/pkg/models"
)

// twitterCodePointLimit is spec.md §4.2's hard limit, measured after
// composing text+hashtags+link (not before).
const twitterCodePointLimit = 280

type DefaultRenderer struct{}

func New() *DefaultRenderer {
	return &DefaultRenderer{}
}

func (r *DefaultRenderer) Render(_ context.Context, item models.ContentItem, channel, template string) (*models.ContentArtifact, error) {
	artifact := &models.ContentArtifact{
		ItemID:   item.ID,
		Channel:  channel,
		Tags:     item.Tags,
		Metadata: item.Metadata,
	}

	switch channel {
	case "email":
		artifact.Subject = item.Title
		artifact.HTML = fmt.Sprintf("<h1>%s</h1><p>%s</p>", item.Title, item.Body)
		artifact.Text = item.Title + "\n\n" + item.Body
	case "web":
		artifact.Subject = item.Title
		artifact.HTML = fmt.Sprintf("<article><h1>%s</h1><div>%s</div></article>", item.Title, item.Body)
		artifact.Text = item.Body
	case "social_twitter":
		artifact.Link = canonicalURL(item.ID)
		artifact.Text = composeTwitter(item, artifact.Link)
	case "social_linkedin", "social_facebook":
		artifact.Text = item.Title + "\n\n" + item.Body
	default:
		return nil, fmt.Errorf("rendering: unknown channel %q", channel)
	}

	_ = template // template selection is a Renderer-internal concern, out of core scope
	return artifact, nil
}

// canonicalURL is the same "/updates/{id}" shape the web channel's
// fixture backend assigns, so a composed tweet links back to the
// content's own web publish.
func canonicalURL(itemID string) string {
	return "/updates/" + itemID
}

// composeTwitter builds `text + hashtags + link` per spec.md §4.2: the
// 280 code-point hard limit is enforced by truncating text only, never
// the hashtags or the link.
func composeTwitter(item models.ContentItem, link string) string {
	return truncateForTwitter(item.Title, buildHashtags(item.Tags), link)
}

func buildHashtags(tags []string) string {
	var b strings.Builder
	for _, t := range tags {
		b.WriteString(" #")
		b.WriteString(strings.ReplaceAll(t, " ", ""))
	}
	return b.String()
}

func truncateForTwitter(text, hashtags, link string) string {
	suffix := strings.TrimSpace(hashtags + " " + link)

	budget := twitterCodePointLimit
	if suffix != "" {
		budget -= validation.CodePointLen(suffix) + 1 // +1 for the space before suffix
	}
	if budget < 0 {
		budget = 0
	}
	text = truncateCodePoints(text, budget)

	if suffix == "" {
		return text
	}
	return strings.TrimSpace(text + " " + suffix)
}

// truncateCodePoints cuts s down to at most max Unicode code points,
// counting runes rather than bytes so multi-byte characters are never
// split mid-sequence.
func truncateCodePoints(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
