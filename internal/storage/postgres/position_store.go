package postgres

import (
	"context"
	"fmt"

	"solsniper/internal/domain"
	"solsniper/internal/storage"
)

// PositionStore implements storage.PositionStore on PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// ApplyDelta moves a position by a signed amount under a row lock, creating
// it on first buy and deleting it at zero.
func (s *PositionStore) ApplyDelta(ctx context.Context, telegramID int64, mint string, delta int64, nowMs int64) error {
	if telegramID == 0 || mint == "" {
		return fmt.Errorf("%w: missing telegram id or mint", storage.ErrInvalidInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current int64
	err = tx.QueryRow(ctx,
		`SELECT amount FROM positions WHERE telegram_id = $1 AND mint = $2 FOR UPDATE`,
		telegramID, mint,
	).Scan(&current)
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("lock position: %w", err)
	}

	next := current + delta
	if next < 0 {
		return fmt.Errorf("%w: delta %d would take position %d/%s below zero",
			storage.ErrInvalidInput, delta, telegramID, mint)
	}

	if next == 0 {
		_, err = tx.Exec(ctx,
			`DELETE FROM positions WHERE telegram_id = $1 AND mint = $2`, telegramID, mint)
	} else {
		_, err = tx.Exec(ctx, `
			INSERT INTO positions (telegram_id, mint, amount, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (telegram_id, mint) DO UPDATE SET
				amount = EXCLUDED.amount, updated_at = EXCLUDED.updated_at
		`, telegramID, mint, next, nowMs)
	}
	if err != nil {
		return fmt.Errorf("apply position delta: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetPosition retrieves one position.
func (s *PositionStore) GetPosition(ctx context.Context, telegramID int64, mint string) (*domain.Position, error) {
	query := `
		SELECT telegram_id, mint, amount, updated_at
		FROM positions WHERE telegram_id = $1 AND mint = $2
	`

	var (
		p      domain.Position
		amount int64
	)
	err := s.pool.QueryRow(ctx, query, telegramID, mint).Scan(
		&p.TelegramID, &p.Mint, &amount, &p.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: position %d/%s", storage.ErrNotFound, telegramID, mint)
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	p.Amount = uint64(amount)
	return &p, nil
}

// ListPositions retrieves all of a user's open positions.
func (s *PositionStore) ListPositions(ctx context.Context, telegramID int64) ([]*domain.Position, error) {
	query := `
		SELECT telegram_id, mint, amount, updated_at
		FROM positions WHERE telegram_id = $1
		ORDER BY mint ASC
	`

	rows, err := s.pool.Query(ctx, query, telegramID)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		var (
			p      domain.Position
			amount int64
		)
		if err := rows.Scan(&p.TelegramID, &p.Mint, &amount, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		p.Amount = uint64(amount)
		positions = append(positions, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}
	return positions, nil
}
