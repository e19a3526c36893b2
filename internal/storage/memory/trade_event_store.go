package memory

import (
	"context"
	"fmt"
	"sync"

	"solsniper/internal/domain"
	"solsniper/internal/storage"
)

// TradeEventStore is an in-memory implementation of storage.TradeEventStore.
type TradeEventStore struct {
	mu     sync.RWMutex
	events []*domain.TradeEvent
}

// NewTradeEventStore creates an empty in-memory trade event store.
func NewTradeEventStore() *TradeEventStore {
	return &TradeEventStore{}
}

func (s *TradeEventStore) Append(_ context.Context, event *domain.TradeEvent) error {
	if event == nil || event.IdempotencyKey == "" {
		return fmt.Errorf("%w: event missing idempotency key", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := *event
	s.events = append(s.events, &c)
	return nil
}

func (s *TradeEventStore) ListByUser(_ context.Context, telegramID int64, limit int) ([]*domain.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.TradeEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].TelegramID != telegramID {
			continue
		}
		c := *s.events[i]
		out = append(out, &c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

var _ storage.TradeEventStore = (*TradeEventStore)(nil)
