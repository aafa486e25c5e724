// Package sourcing provides an in-process ContentSource implementation
// suitable for local runs and tests. Document fetchers for real
// collaborative editors (Google Docs, Notion, URL readers) are external
// capabilities (spec.md §1) with no home in this module.
package sourcing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signalpress/signalpress/pkg/models"
)

// FixtureSource is an in-memory ContentSource, seeded programmatically.
// It is the default ContentSource used by cmd/server and by tests.
type FixtureSource struct {
	mu   sync.RWMutex
	docs map[string]*models.RawContent
}

func NewFixtureSource() *FixtureSource {
	return &FixtureSource{docs: make(map[string]*models.RawContent)}
}

// Seed registers the raw content bundle for a document id.
func (s *FixtureSource) Seed(documentID string, sections []map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[documentID] = &models.RawContent{
		DocumentID: documentID,
		Sections:   sections,
		FetchedAt:  time.Now().UTC(),
	}
}

func (s *FixtureSource) Fetch(_ context.Context, documentID string) (*models.RawContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.docs[documentID]
	if !ok {
		return nil, fmt.Errorf("sourcing: unknown document %q", documentID)
	}
	return raw, nil
}
