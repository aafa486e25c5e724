package validation

import (
	"testing"
	"time"

	"github.com/signalpress/signalpress/pkg/models"
)

func knownValidator() *Validator {
	return New([]string{"email", "web", "social_twitter"})
}

func TestValidatePublishedDefaultsFalse(t *testing.T) {
	v := knownValidator()
	raw := &models.RawContent{Sections: []map[string]interface{}{
		{"kind": "update", "id": "u1", "title": "Update 1", "body": "hello"},
	}}

	items, issues, _ := v.Validate(raw)
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Published {
		t.Fatal("published should default to false")
	}
	if items[0].Priority != 3 {
		t.Fatalf("priority should default to 3, got %d", items[0].Priority)
	}
}

func TestValidatePriorityOutOfRange(t *testing.T) {
	v := knownValidator()
	raw := &models.RawContent{Sections: []map[string]interface{}{
		{"kind": "update", "id": "u1", "title": "t", "priority": 9},
	}}

	_, issues, _ := v.Validate(raw)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %v", len(issues), issues)
	}
}

func TestValidateUnknownChannelRejected(t *testing.T) {
	v := knownValidator()
	raw := &models.RawContent{Sections: []map[string]interface{}{
		{"kind": "update", "id": "u1", "title": "t", "channels": []interface{}{"carrier_pigeon"}},
	}}

	_, issues, _ := v.Validate(raw)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue for unknown channel, got %v", issues)
	}
}

func TestValidateScheduledForPastWarns(t *testing.T) {
	timeNow = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { timeNow = time.Now }()

	v := knownValidator()
	raw := &models.RawContent{Sections: []map[string]interface{}{
		{"kind": "update", "id": "u1", "title": "t", "scheduled_for": "2020-01-01T00:00:00Z"},
	}}

	_, issues, warnings := v.Validate(raw)
	if len(issues) != 0 {
		t.Fatalf("unexpected hard issues: %v", issues)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning for past timestamp, got %v", warnings)
	}
}

func TestValidateBlogReadingTime(t *testing.T) {
	v := knownValidator()
	words := ""
	for i := 0; i < 400; i++ {
		words += "word "
	}
	raw := &models.RawContent{Sections: []map[string]interface{}{
		{"kind": "blog", "id": "b1", "title": "t", "body": words},
	}}

	items, issues, _ := v.Validate(raw)
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
	if items[0].ReadingTime != 2 {
		t.Fatalf("expected reading_time=2 for 400 words at 200wpm, got %d", items[0].ReadingTime)
	}
}

func TestValidateMinimumReadingTimeIsOne(t *testing.T) {
	v := knownValidator()
	raw := &models.RawContent{Sections: []map[string]interface{}{
		{"kind": "blog", "id": "b1", "title": "t", "body": "short"},
	}}

	items, _, _ := v.Validate(raw)
	if items[0].ReadingTime != 1 {
		t.Fatalf("expected minimum reading_time=1, got %d", items[0].ReadingTime)
	}
}

func TestValidateMissingRequiredFields(t *testing.T) {
	v := knownValidator()
	raw := &models.RawContent{Sections: []map[string]interface{}{
		{"kind": "update"},
	}}

	items, issues, _ := v.Validate(raw)
	if len(items) != 0 {
		t.Fatalf("expected item to be rejected, got %d items", len(items))
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues (id, title), got %v", issues)
	}
}

func TestValidateUnrecognizedKind(t *testing.T) {
	v := knownValidator()
	raw := &models.RawContent{Sections: []map[string]interface{}{
		{"kind": "podcast", "id": "p1", "title": "t"},
	}}

	_, issues, _ := v.Validate(raw)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue for unrecognized kind, got %v", issues)
	}
}
