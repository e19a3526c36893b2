package clickhouse

import (
	"context"
	"fmt"

	"solsniper/internal/domain"
	"solsniper/internal/storage"
)

// TradeEventStore implements storage.TradeEventStore using ClickHouse.
type TradeEventStore struct {
	conn *Conn
}

// NewTradeEventStore creates a new TradeEventStore.
func NewTradeEventStore(conn *Conn) *TradeEventStore {
	return &TradeEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

// Append records one confirmed trade. The table is a ReplacingMergeTree
// keyed by idempotency key, so a replayed finalization is harmless.
func (s *TradeEventStore) Append(ctx context.Context, e *domain.TradeEvent) error {
	if e == nil || e.IdempotencyKey == "" {
		return fmt.Errorf("%w: event missing idempotency key", storage.ErrInvalidInput)
	}

	query := `
		INSERT INTO trade_events (
			idempotency_key, telegram_id, mint, side, venue,
			amount_in, amount_out, price_impact, signature, executed_at
		)
	`

	batch, err := s.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	err = batch.Append(
		e.IdempotencyKey, e.TelegramID, e.Mint, string(e.Side), string(e.Venue),
		e.AmountIn, e.AmountOut, e.PriceImpact, e.Signature, uint64(e.ExecutedAt),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// ListByUser retrieves a user's most recent trades, newest first.
func (s *TradeEventStore) ListByUser(ctx context.Context, telegramID int64, limit int) ([]*domain.TradeEvent, error) {
	query := `
		SELECT idempotency_key, telegram_id, mint, side, venue,
			amount_in, amount_out, price_impact, signature, executed_at
		FROM trade_events
		WHERE telegram_id = ?
		ORDER BY executed_at DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, telegramID, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query trade events: %w", err)
	}
	defer rows.Close()

	var events []*domain.TradeEvent
	for rows.Next() {
		var (
			e           domain.TradeEvent
			side, venue string
			executedAt  uint64
		)
		err := rows.Scan(
			&e.IdempotencyKey, &e.TelegramID, &e.Mint, &side, &venue,
			&e.AmountIn, &e.AmountOut, &e.PriceImpact, &e.Signature, &executedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade event row: %w", err)
		}
		e.Side = domain.Side(side)
		e.Venue = domain.VenueKind(venue)
		e.ExecutedAt = int64(executedAt)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade event rows: %w", err)
	}
	return events, nil
}
