// Package memory provides in-memory storage implementations used by tests
// and local development. All stores copy on write and on read so callers
// can never mutate shared state.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solsniper/internal/domain"
	"solsniper/internal/storage"
)

// ExecutionRecordStore is an in-memory implementation of
// storage.ExecutionRecordStore.
type ExecutionRecordStore struct {
	mu      sync.RWMutex
	records map[string]*domain.ExecutionRecord // keyed by idempotency key
}

// NewExecutionRecordStore creates an empty in-memory record store.
func NewExecutionRecordStore() *ExecutionRecordStore {
	return &ExecutionRecordStore{records: make(map[string]*domain.ExecutionRecord)}
}

func (s *ExecutionRecordStore) Insert(_ context.Context, record *domain.ExecutionRecord) error {
	if record == nil || record.IdempotencyKey == "" {
		return fmt.Errorf("%w: record missing idempotency key", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.IdempotencyKey]; exists {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, record.IdempotencyKey)
	}
	s.records[record.IdempotencyKey] = copyRecord(record)
	return nil
}

func (s *ExecutionRecordStore) GetByKey(_ context.Context, key string) (*domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return copyRecord(record), nil
}

func (s *ExecutionRecordStore) GetBySignature(_ context.Context, signature string) (*domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.Signature == signature && signature != "" {
			return copyRecord(record), nil
		}
	}
	return nil, fmt.Errorf("%w: signature %s", storage.ErrNotFound, signature)
}

func (s *ExecutionRecordStore) ListByStatus(_ context.Context, status domain.ExecutionStatus) ([]*domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ExecutionRecord
	for _, record := range s.records {
		if record.Status == status {
			out = append(out, copyRecord(record))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (s *ExecutionRecordStore) Update(_ context.Context, record *domain.ExecutionRecord) error {
	if record == nil || record.IdempotencyKey == "" {
		return fmt.Errorf("%w: record missing idempotency key", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[record.IdempotencyKey]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, record.IdempotencyKey)
	}
	if stored.Status != record.Status && !stored.Status.CanTransition(record.Status) {
		return fmt.Errorf("%w: %s -> %s", storage.ErrStaleUpdate, stored.Status, record.Status)
	}
	s.records[record.IdempotencyKey] = copyRecord(record)
	return nil
}

func copyRecord(r *domain.ExecutionRecord) *domain.ExecutionRecord {
	c := *r
	if r.FinalizedAt != nil {
		v := *r.FinalizedAt
		c.FinalizedAt = &v
	}
	return &c
}

var _ storage.ExecutionRecordStore = (*ExecutionRecordStore)(nil)
