// Package validation turns RawContent into validated ContentItems,
// enforcing the schema and invariants spec.md §4.1 requires.
package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/signalpress/signalpress/pkg/models"
)

const wordsPerMinute = 200

// timeNow is overridable in tests.
var timeNow = time.Now

// Issue locates a validation failure within the raw input, e.g.
// "body[3].title".
type Issue struct {
	Path    string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// ValidationError is returned when an item fails a required-field or
// type constraint; it is never used for warnings.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, iss := range e.Issues {
		parts[i] = iss.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator knows the set of registered publisher channels so it can
// reject unknown channel ids.
type Validator struct {
	knownChannels map[string]bool
}

func New(channels []string) *Validator {
	known := make(map[string]bool, len(channels))
	for _, c := range channels {
		known[c] = true
	}
	return &Validator{knownChannels: known}
}

// Validate parses raw content into a sequence of ContentItems. It never
// fails on warnings; a missing required field, a malformed flag, or a
// violated type constraint is returned in issues with a path locator,
// and the offending item is left out of items. Items are emitted in
// source order.
func (v *Validator) Validate(raw *models.RawContent) (items []models.ContentItem, issues []Issue, warnings []Issue) {
	var hardErrors []Issue

	for idx, section := range raw.Sections {
		path := fmt.Sprintf("body[%d]", idx)
		item, itemIssues, itemWarnings, ok := v.validateSection(path, section)
		hardErrors = append(hardErrors, itemIssues...)
		warnings = append(warnings, itemWarnings...)
		if ok {
			items = append(items, item)
		}
	}

	return items, hardErrors, warnings
}

// ValidateOne validates a single pre-constructed item draft, for API
// surface callers that submit one ContentItem directly rather than a
// RawContent bundle.
func (v *Validator) ValidateOne(draft map[string]interface{}) (*models.ContentItem, error) {
	item, issues, _, ok := v.validateSection("item", draft)
	if !ok {
		return nil, &ValidationError{Issues: issues}
	}
	return &item, nil
}

func (v *Validator) validateSection(path string, section map[string]interface{}) (models.ContentItem, []Issue, []Issue, bool) {
	var issues []Issue
	var warnings []Issue
	item := models.ContentItem{}

	kindRaw, _ := section["kind"].(string)
	switch models.ContentKind(kindRaw) {
	case models.KindUpdate, models.KindBlog, models.KindAnnouncement, models.KindSessionSummary:
		item.Kind = models.ContentKind(kindRaw)
	default:
		issues = append(issues, Issue{Path: path + ".kind", Message: fmt.Sprintf("unrecognized kind %q", kindRaw)})
	}

	item.ID, _ = section["id"].(string)
	if item.ID == "" {
		issues = append(issues, Issue{Path: path + ".id", Message: "missing required field"})
	}

	item.Title, _ = section["title"].(string)
	if item.Title == "" {
		issues = append(issues, Issue{Path: path + ".title", Message: "missing required field"})
	}
	item.Body, _ = section["body"].(string)

	switch p := section["published"].(type) {
	case nil:
		item.Published = false
	case bool:
		item.Published = p
	default:
		issues = append(issues, Issue{Path: path + ".published", Message: "must be boolean"})
	}

	item.Priority = 3
	if pRaw, present := section["priority"]; present {
		p, err := toInt(pRaw)
		if err != nil || p < 1 || p > 5 {
			issues = append(issues, Issue{Path: path + ".priority", Message: "must be an integer 1..5"})
		} else {
			item.Priority = p
		}
	}

	if chRaw, present := section["channels"]; present {
		channels, err := toStringSlice(chRaw)
		if err != nil {
			issues = append(issues, Issue{Path: path + ".channels", Message: "must be a list of strings"})
		} else {
			for _, c := range channels {
				if !v.knownChannels[c] {
					issues = append(issues, Issue{Path: path + ".channels", Message: fmt.Sprintf("unknown channel %q", c)})
				}
			}
			item.Channels = channels
		}
	}

	if sfRaw, present := section["scheduled_for"]; present {
		sfStr, _ := sfRaw.(string)
		t, err := time.Parse(time.RFC3339, sfStr)
		if err != nil {
			issues = append(issues, Issue{Path: path + ".scheduled_for", Message: "must be UTC ISO-8601"})
		} else {
			t = t.UTC()
			item.ScheduledFor = &t
			if t.Before(timeNow()) {
				warnings = append(warnings, Issue{Path: path + ".scheduled_for", Message: "timestamp is in the past"})
			}
		}
	}

	item.Template, _ = section["template"].(string)
	if toneRaw, ok := section["tone"].(string); ok && toneRaw != "" {
		item.Tone = models.Tone(toneRaw)
	}

	item.Featured, _ = section["featured"].(bool)

	if tagsRaw, present := section["tags"]; present {
		tags, err := toStringSlice(tagsRaw)
		if err == nil {
			item.Tags = tags
		}
	}

	if metaRaw, present := section["metadata"]; present {
		if m, ok := metaRaw.(map[string]string); ok {
			item.Metadata = m
		} else if m, ok := metaRaw.(map[string]interface{}); ok {
			item.Metadata = make(map[string]string, len(m))
			for k, val := range m {
				item.Metadata[k] = fmt.Sprintf("%v", val)
			}
		}
	}

	if item.Kind == models.KindBlog {
		words := len(strings.Fields(item.Body))
		rt := words / wordsPerMinute
		if rt < 1 {
			rt = 1
		}
		item.ReadingTime = rt
	}

	return item, issues, warnings, len(issues) == 0
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("not a number")
	}
}

func toStringSlice(v interface{}) ([]string, error) {
	switch s := v.(type) {
	case []string:
		return s, nil
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, e := range s {
			str, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("non-string element")
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("not a list")
	}
}

// CodePointLen returns the code-point length of s, used by the Twitter
// channel publisher for the 280 code-point limit.
func CodePointLen(s string) int {
	return utf8.RuneCountInString(s)
}
