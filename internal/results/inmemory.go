package results

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps submissions in process for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Submission
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Save(_ context.Context, sub Submission) error {
	sub = prepare(sub)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, sub)
	return nil
}

// Recent returns up to limit submissions, newest first.
func (s *InMemoryStore) Recent(_ context.Context, limit int) ([]Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	limit = min(limit, len(s.records))
	out := make([]Submission, 0, limit)
	for i := len(s.records) - 1; i >= len(s.records)-limit; i-- {
		out = append(out, cloneSubmission(s.records[i]))
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }

func prepare(sub Submission) Submission {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CompletedAt.IsZero() {
		sub.CompletedAt = time.Now().UTC()
	}
	return cloneSubmission(sub)
}

func cloneSubmission(sub Submission) Submission {
	responses := make(map[int]string, len(sub.Responses))
	for k, v := range sub.Responses {
		responses[k] = v
	}
	sub.Responses = responses
	return sub
}
