package pipeline

import (
	"context"
	"sync"

	"github.com/spacesedan/aspectflow/internal/errs"
	"github.com/spacesedan/aspectflow/internal/models"
)

// MemoryLocker is a process-local BatchLocker.
type MemoryLocker struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{active: make(map[string]struct{})}
}

func (l *MemoryLocker) Acquire(_ context.Context, batchID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.active[batchID]; busy {
		return nil, errs.ErrBatchBusy
	}
	l.active[batchID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.active, batchID)
			l.mu.Unlock()
		})
	}, nil
}

type MemoryItemStore struct {
	mu      sync.RWMutex
	batches map[string][]models.FeedbackItem
}

func NewMemoryItemStore() *MemoryItemStore {
	return &MemoryItemStore{batches: make(map[string][]models.FeedbackItem)}
}

func (s *MemoryItemStore) Store(_ context.Context, batchID string, items []models.FeedbackItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batchID]; ok {
		return errs.ErrBatchExists
	}
	s.batches[batchID] = append([]models.FeedbackItem(nil), items...)
	return nil
}

func (s *MemoryItemStore) Exists(_ context.Context, batchID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.batches[batchID]
	return ok, nil
}

func (s *MemoryItemStore) Load(_ context.Context, batchID string) ([]models.FeedbackItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, ok := s.batches[batchID]
	if !ok {
		return nil, errs.ErrBatchNotFound
	}
	return append([]models.FeedbackItem(nil), items...), nil
}
