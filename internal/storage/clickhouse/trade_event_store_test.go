package clickhouse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"solsniper/internal/domain"
	"solsniper/internal/storage"
	"solsniper/internal/storage/clickhouse"
)

func testEvent(key string, executedAt int64) *domain.TradeEvent {
	return &domain.TradeEvent{
		IdempotencyKey: key,
		TelegramID:     42,
		Mint:           "So11111111111111111111111111111111111111112",
		Side:           domain.SideBuy,
		Venue:          domain.VenueBondingCurve,
		AmountIn:       1_000_000,
		AmountOut:      48_000,
		PriceImpact:    0.04,
		Signature:      "sig-" + key,
		ExecutedAt:     executedAt,
	}
}

func TestTradeEventAppendAndList(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := clickhouse.NewTradeEventStore(conn)

	require.NoError(t, store.Append(ctx, testEvent("k1", 100)))
	require.NoError(t, store.Append(ctx, testEvent("k2", 200)))
	require.NoError(t, store.Append(ctx, testEvent("k3", 300)))

	got, err := store.ListByUser(ctx, 42, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "k3", got[0].IdempotencyKey)
	require.Equal(t, "k2", got[1].IdempotencyKey)
	require.Equal(t, uint64(48_000), got[0].AmountOut)
}

func TestTradeEventOtherUserEmpty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := clickhouse.NewTradeEventStore(conn)

	require.NoError(t, store.Append(ctx, testEvent("k1", 100)))

	got, err := store.ListByUser(ctx, 7, 10)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestTradeEventRejectsMissingKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	err := clickhouse.NewTradeEventStore(conn).Append(context.Background(), &domain.TradeEvent{})
	require.ErrorIs(t, err, storage.ErrInvalidInput)
}
