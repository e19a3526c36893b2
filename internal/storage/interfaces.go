// Package storage defines the persistence interfaces and shared errors.
// Implementations live in subpackages: memory for tests and development,
// postgres for the system of record, clickhouse for trade analytics.
package storage

import (
	"context"

	"solsniper/internal/domain"
)

// ExecutionRecordStore persists execution records, the system of record for
// "did this trade happen". Keys are idempotency keys.
type ExecutionRecordStore interface {
	// Insert creates a record. Returns ErrDuplicateKey when the idempotency
	// key already exists.
	Insert(ctx context.Context, record *domain.ExecutionRecord) error

	// GetByKey retrieves a record by idempotency key.
	// Returns ErrNotFound when absent.
	GetByKey(ctx context.Context, key string) (*domain.ExecutionRecord, error)

	// GetBySignature retrieves a record by transaction signature.
	// Returns ErrNotFound when absent.
	GetBySignature(ctx context.Context, signature string) (*domain.ExecutionRecord, error)

	// ListByStatus retrieves all records in the given status, oldest first.
	ListByStatus(ctx context.Context, status domain.ExecutionStatus) ([]*domain.ExecutionRecord, error)

	// Update persists a record's new state. Returns ErrNotFound when the key
	// is unknown and ErrStaleUpdate when the stored status does not allow
	// the transition.
	Update(ctx context.Context, record *domain.ExecutionRecord) error
}

// UserStore persists users and their settings.
type UserStore interface {
	// CreateUser creates a user. Returns ErrDuplicateKey when the telegram
	// id is already registered.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUser retrieves a user by telegram id. Returns ErrNotFound when absent.
	GetUser(ctx context.Context, telegramID int64) (*domain.User, error)

	// UpsertSettings creates or replaces a user's settings.
	UpsertSettings(ctx context.Context, settings *domain.Settings) error

	// GetSettings retrieves a user's settings. Returns ErrNotFound when the
	// user never changed the defaults.
	GetSettings(ctx context.Context, telegramID int64) (*domain.Settings, error)
}

// PositionStore tracks per-user token holdings.
type PositionStore interface {
	// ApplyDelta moves a position by a signed amount, creating it on first
	// buy and deleting it when it reaches zero. Returns ErrInvalidInput when
	// the delta would take the position negative.
	ApplyDelta(ctx context.Context, telegramID int64, mint string, delta int64, nowMs int64) error

	// GetPosition retrieves one position. Returns ErrNotFound when absent.
	GetPosition(ctx context.Context, telegramID int64, mint string) (*domain.Position, error)

	// ListPositions retrieves all of a user's open positions.
	ListPositions(ctx context.Context, telegramID int64) ([]*domain.Position, error)
}

// TradeEventStore appends confirmed trades for analytics. Append-only.
type TradeEventStore interface {
	// Append records one confirmed trade.
	Append(ctx context.Context, event *domain.TradeEvent) error

	// ListByUser retrieves a user's most recent trades, newest first.
	ListByUser(ctx context.Context, telegramID int64, limit int) ([]*domain.TradeEvent, error)
}
