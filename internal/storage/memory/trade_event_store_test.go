package memory

import (
	"context"
	"testing"

	"solsniper/internal/domain"
)

func TestTradeEventAppendAndList(t *testing.T) {
	ctx := context.Background()
	store := NewTradeEventStore()

	for i, key := range []string{"k1", "k2", "k3"} {
		err := store.Append(ctx, &domain.TradeEvent{
			IdempotencyKey: key,
			TelegramID:     42,
			Mint:           "mint",
			Side:           domain.SideBuy,
			ExecutedAt:     int64(100 * (i + 1)),
		})
		if err != nil {
			t.Fatalf("append %s: %v", key, err)
		}
	}

	got, err := store.ListByUser(ctx, 42, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].IdempotencyKey != "k3" || got[1].IdempotencyKey != "k2" {
		t.Fatalf("got %d events, want k3 then k2", len(got))
	}
}

func TestTradeEventListOtherUserEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewTradeEventStore()

	if err := store.Append(ctx, &domain.TradeEvent{IdempotencyKey: "k1", TelegramID: 42}); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := store.ListByUser(ctx, 7, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d events for a user with none", len(got))
	}
}
