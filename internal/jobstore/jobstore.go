// Package jobstore is the durable-ish registry of SyncJobs (spec.md
// §4.8, §5): atomic compare-and-set state transitions, linearizable
// reads, pagination, and age-based retention of terminal jobs.
package jobstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalpress/signalpress/pkg/models"
)

// ErrNotFound mirrors the teacher's store.ErrNotFound{Entity,Key} shape.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("jobstore: %s %q not found", e.Entity, e.Key)
}

// ErrInvalidTransition is returned by Transition when the compare-and-
// set precondition (current status == from) does not hold, or the
// target job is already terminal.
type ErrInvalidTransition struct {
	JobID string
	From  models.JobStatus
	To    models.JobStatus
	Had   models.JobStatus
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("jobstore: cannot transition job %s from %s to %s (actual status %s)", e.JobID, e.From, e.To, e.Had)
}

// ListFilter is an optional status filter plus Limit/Offset pagination,
// after the teacher's store.ListFilter helper; it has no Since field.
type ListFilter struct {
	Status *models.JobStatus
	Limit  int
	Offset int
}

// Store is the JobStore contract: the single writer of job state.
type Store interface {
	Create(job models.SyncJob) error
	Get(jobID string) (models.SyncJob, error)
	List(f ListFilter) ([]models.SyncJob, int, error)
	// Transition atomically moves a job from `from` to `to`, applying
	// patch under the same lock. It fails if the job's current status
	// is not `from`, or is already terminal.
	Transition(jobID string, from, to models.JobStatus, patch func(*models.SyncJob)) error
	// FindByFingerprint returns the job_id of a non-terminal job with
	// the given fingerprint, if any.
	FindByFingerprint(fingerprint string) (string, bool)
	EvictExpired(now time.Time, minAge, maxAge time.Duration) int
}

type memoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.SyncJob
}

func NewMemoryStore() Store {
	return &memoryStore{jobs: make(map[string]*models.SyncJob)}
}

func (s *memoryStore) Create(job models.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := job
	s.jobs[job.JobID] = &j
	return nil
}

func (s *memoryStore) Get(jobID string) (models.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return models.SyncJob{}, &ErrNotFound{Entity: "job", Key: jobID}
	}
	return *j, nil
}

func (s *memoryStore) List(f ListFilter) ([]models.SyncJob, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]models.SyncJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		if f.Status != nil && j.Status != *f.Status {
			continue
		}
		all = append(all, *j)
	}
	sort.Slice(all, func(i, k int) bool { return all[i].CreatedAt.Before(all[k].CreatedAt) })

	total := len(all)
	limit := f.Limit
	if limit <= 0 {
		limit = total
	}
	offset := f.Offset
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *memoryStore) Transition(jobID string, from, to models.JobStatus, patch func(*models.SyncJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return &ErrNotFound{Entity: "job", Key: jobID}
	}
	if j.Status.IsTerminal() {
		return &ErrInvalidTransition{JobID: jobID, From: from, To: to, Had: j.Status}
	}
	if j.Status != from {
		return &ErrInvalidTransition{JobID: jobID, From: from, To: to, Had: j.Status}
	}

	j.Status = to
	if patch != nil {
		patch(j)
	}
	return nil
}

func (s *memoryStore) FindByFingerprint(fingerprint string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.Fingerprint == fingerprint && !j.Status.IsTerminal() {
			return j.JobID, true
		}
	}
	return "", false
}

// EvictExpired removes terminal jobs older than maxAge (and newer than
// minAge is never evicted even if otherwise eligible — spec.md §4.8's
// "at least 24h, at most 30 days"). Non-terminal jobs are never
// evicted. Returns the number of jobs removed.
func (s *memoryStore) EvictExpired(now time.Time, minAge, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, j := range s.jobs {
		if !j.Status.IsTerminal() {
			continue
		}
		age := now.Sub(j.CreatedAt)
		if age < minAge {
			continue
		}
		if age >= maxAge {
			delete(s.jobs, id)
			evicted++
		}
	}
	return evicted
}
