package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solsniper/internal/domain"
	"solsniper/internal/storage"
)

// ExecutionRecordStore implements storage.ExecutionRecordStore on PostgreSQL.
type ExecutionRecordStore struct {
	pool *Pool
}

// NewExecutionRecordStore creates a new ExecutionRecordStore.
func NewExecutionRecordStore(pool *Pool) *ExecutionRecordStore {
	return &ExecutionRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExecutionRecordStore = (*ExecutionRecordStore)(nil)

const executionRecordColumns = `
	idempotency_key, user_id, mint, side, venue, quote_currency,
	amount_in, expected_out, min_out,
	status, signature, realized_out, failure_reason,
	created_at, finalized_at
`

// Insert creates a record. Returns ErrDuplicateKey if the key exists.
func (s *ExecutionRecordStore) Insert(ctx context.Context, r *domain.ExecutionRecord) error {
	query := `
		INSERT INTO execution_records (` + executionRecordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.pool.Exec(ctx, query,
		r.IdempotencyKey, r.UserID, r.Mint, string(r.Side), string(r.Venue), string(r.Quote),
		int64(r.AmountIn), int64(r.ExpectedOut), int64(r.MinOut),
		string(r.Status), r.Signature, int64(r.RealizedOut), r.FailureReason,
		r.CreatedAt, r.FinalizedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, r.IdempotencyKey)
		}
		return fmt.Errorf("insert execution record: %w", err)
	}
	return nil
}

// GetByKey retrieves a record by idempotency key.
func (s *ExecutionRecordStore) GetByKey(ctx context.Context, key string) (*domain.ExecutionRecord, error) {
	query := `SELECT ` + executionRecordColumns + ` FROM execution_records WHERE idempotency_key = $1`

	r, err := scanExecutionRecord(s.pool.QueryRow(ctx, query, key))
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return nil, fmt.Errorf("get execution record: %w", err)
	}
	return r, nil
}

// GetBySignature retrieves a record by transaction signature.
func (s *ExecutionRecordStore) GetBySignature(ctx context.Context, signature string) (*domain.ExecutionRecord, error) {
	query := `SELECT ` + executionRecordColumns + ` FROM execution_records WHERE signature = $1 AND signature <> ''`

	r, err := scanExecutionRecord(s.pool.QueryRow(ctx, query, signature))
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: signature %s", storage.ErrNotFound, signature)
		}
		return nil, fmt.Errorf("get execution record by signature: %w", err)
	}
	return r, nil
}

// ListByStatus retrieves all records in the given status, oldest first.
func (s *ExecutionRecordStore) ListByStatus(ctx context.Context, status domain.ExecutionStatus) ([]*domain.ExecutionRecord, error) {
	query := `
		SELECT ` + executionRecordColumns + `
		FROM execution_records
		WHERE status = $1
		ORDER BY created_at ASC, idempotency_key ASC
	`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list execution records by status: %w", err)
	}
	defer rows.Close()

	var records []*domain.ExecutionRecord
	for rows.Next() {
		r, err := scanExecutionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution record row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution record rows: %w", err)
	}
	return records, nil
}

// Update persists a record's new state, enforcing the status state machine
// under a row lock.
func (s *ExecutionRecordStore) Update(ctx context.Context, r *domain.ExecutionRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx,
		`SELECT status FROM execution_records WHERE idempotency_key = $1 FOR UPDATE`,
		r.IdempotencyKey,
	).Scan(&current)
	if err != nil {
		if isNotFoundError(err) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, r.IdempotencyKey)
		}
		return fmt.Errorf("lock execution record: %w", err)
	}

	stored := domain.ExecutionStatus(current)
	if stored != r.Status && !stored.CanTransition(r.Status) {
		return fmt.Errorf("%w: %s -> %s", storage.ErrStaleUpdate, stored, r.Status)
	}

	_, err = tx.Exec(ctx, `
		UPDATE execution_records SET
			status = $2, signature = $3, realized_out = $4,
			failure_reason = $5, finalized_at = $6
		WHERE idempotency_key = $1
	`,
		r.IdempotencyKey, string(r.Status), r.Signature,
		int64(r.RealizedOut), r.FailureReason, r.FinalizedAt,
	)
	if err != nil {
		return fmt.Errorf("update execution record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanExecutionRecord(row pgx.Row) (*domain.ExecutionRecord, error) {
	var (
		r                             domain.ExecutionRecord
		side, venue, quoteCur, status string
		amountIn, expectedOut, minOut int64
		realizedOut                   int64
	)

	err := row.Scan(
		&r.IdempotencyKey, &r.UserID, &r.Mint, &side, &venue, &quoteCur,
		&amountIn, &expectedOut, &minOut,
		&status, &r.Signature, &realizedOut, &r.FailureReason,
		&r.CreatedAt, &r.FinalizedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Side = domain.Side(side)
	r.Venue = domain.VenueKind(venue)
	r.Quote = domain.QuoteCurrency(quoteCur)
	r.Status = domain.ExecutionStatus(status)
	r.AmountIn = uint64(amountIn)
	r.ExpectedOut = uint64(expectedOut)
	r.MinOut = uint64(minOut)
	r.RealizedOut = uint64(realizedOut)
	return &r, nil
}
