package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solsniper/internal/domain"
	"solsniper/internal/storage"
)

type positionKey struct {
	telegramID int64
	mint       string
}

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu        sync.RWMutex
	positions map[positionKey]*domain.Position
}

// NewPositionStore creates an empty in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{positions: make(map[positionKey]*domain.Position)}
}

func (s *PositionStore) ApplyDelta(_ context.Context, telegramID int64, mint string, delta int64, nowMs int64) error {
	if telegramID == 0 || mint == "" {
		return fmt.Errorf("%w: missing telegram id or mint", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := positionKey{telegramID: telegramID, mint: mint}
	current := int64(0)
	if pos, ok := s.positions[key]; ok {
		current = int64(pos.Amount)
	}

	next := current + delta
	if next < 0 {
		return fmt.Errorf("%w: delta %d would take position %d/%s below zero",
			storage.ErrInvalidInput, delta, telegramID, mint)
	}
	if next == 0 {
		delete(s.positions, key)
		return nil
	}

	s.positions[key] = &domain.Position{
		TelegramID: telegramID,
		Mint:       mint,
		Amount:     uint64(next),
		UpdatedAt:  nowMs,
	}
	return nil
}

func (s *PositionStore) GetPosition(_ context.Context, telegramID int64, mint string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.positions[positionKey{telegramID: telegramID, mint: mint}]
	if !ok {
		return nil, fmt.Errorf("%w: position %d/%s", storage.ErrNotFound, telegramID, mint)
	}
	c := *pos
	return &c, nil
}

func (s *PositionStore) ListPositions(_ context.Context, telegramID int64) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Position
	for _, pos := range s.positions {
		if pos.TelegramID == telegramID {
			c := *pos
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mint < out[j].Mint })
	return out, nil
}

var _ storage.PositionStore = (*PositionStore)(nil)
