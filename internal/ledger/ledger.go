// Package ledger owns the execution record lifecycle: every trade is
// recorded before submission, transitions through the status state machine
// exactly once, and only a confirmed record moves balances.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"solsniper/internal/domain"
	"solsniper/internal/storage"
)

var (
	// ErrDuplicateRequest means a record already exists for the idempotency
	// key. The existing record is returned alongside so callers can report
	// the original outcome instead of trading twice.
	ErrDuplicateRequest = errors.New("duplicate trade request")

	// ErrReconciliationRequired means the existing record for the key is
	// indeterminate: its on-chain outcome is unknown and only reconciliation
	// may settle it. It wraps ErrDuplicateRequest so callers that only check
	// for duplicates still refuse to trade twice.
	ErrReconciliationRequired = fmt.Errorf("%w: reconciliation required", ErrDuplicateRequest)
)

// Ledger coordinates execution records, positions, and the analytics feed.
type Ledger struct {
	records   storage.ExecutionRecordStore
	positions storage.PositionStore
	events    storage.TradeEventStore
	logger    *log.Logger
	now       func() time.Time

	userLocks *keyedMutex
}

// New creates a ledger over the given stores.
func New(records storage.ExecutionRecordStore, positions storage.PositionStore, events storage.TradeEventStore, logger *log.Logger) *Ledger {
	return &Ledger{
		records:   records,
		positions: positions,
		events:    events,
		logger:    logger,
		now:       time.Now,
		userLocks: newKeyedMutex(),
	}
}

// LockUser serializes all trading activity for one user. Callers hold the
// lock from balance read through finalization so concurrent sells cannot
// size themselves from the same balance.
func (l *Ledger) LockUser(userID int64) func() {
	return l.userLocks.lock(userID)
}

// Begin durably records the intent to trade, strictly before any
// transaction is built. Returns the existing record wrapped in
// ErrDuplicateRequest when the key has been seen before, or in
// ErrReconciliationRequired when that record is still indeterminate.
func (l *Ledger) Begin(ctx context.Context, q *domain.Quote, userID int64, idempotencyKey string) (*domain.ExecutionRecord, error) {
	record := &domain.ExecutionRecord{
		IdempotencyKey: idempotencyKey,
		UserID:         userID,
		Mint:           q.Mint,
		Side:           q.Side,
		Venue:          q.VenueState.Venue,
		Quote:          q.VenueState.Quote,
		AmountIn:       q.AmountIn,
		ExpectedOut:    q.ExpectedOut,
		MinOut:         q.MinOut,
		Status:         domain.StatusPending,
		CreatedAt:      l.now().UnixMilli(),
	}

	err := l.records.Insert(ctx, record)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return nil, fmt.Errorf("record trade intent: %w", err)
	}

	existing, getErr := l.records.GetByKey(ctx, idempotencyKey)
	if getErr != nil {
		return nil, fmt.Errorf("load duplicate record: %w", getErr)
	}
	if existing.Status == domain.StatusIndeterminate {
		return existing, fmt.Errorf("%w: %s", ErrReconciliationRequired, idempotencyKey)
	}
	return existing, fmt.Errorf("%w: %s is %s", ErrDuplicateRequest, idempotencyKey, existing.Status)
}

// MarkSubmitted persists the signature before the transaction goes out.
// After this point a crash leaves a record that reconciliation can settle
// by signature.
func (l *Ledger) MarkSubmitted(ctx context.Context, record *domain.ExecutionRecord, signature string) error {
	record.Status = domain.StatusSubmitted
	record.Signature = signature
	if err := l.records.Update(ctx, record); err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	return nil
}

// MarkRejected finalizes a record that never reached the chain.
func (l *Ledger) MarkRejected(ctx context.Context, record *domain.ExecutionRecord, reason string) error {
	record.Status = domain.StatusRejected
	record.FailureReason = reason
	record.FinalizedAt = ptrInt64(l.now().UnixMilli())
	if err := l.records.Update(ctx, record); err != nil {
		return fmt.Errorf("mark rejected: %w", err)
	}
	return nil
}

// MarkIndeterminate parks a record whose outcome is unknown. Only
// reconciliation may settle it; it must never be resubmitted.
func (l *Ledger) MarkIndeterminate(ctx context.Context, record *domain.ExecutionRecord, reason string) error {
	record.Status = domain.StatusIndeterminate
	record.FailureReason = reason
	if err := l.records.Update(ctx, record); err != nil {
		return fmt.Errorf("mark indeterminate: %w", err)
	}
	return nil
}

// Confirm finalizes a confirmed trade: status flip, position movement, and
// the analytics event, exactly once. A record that is already confirmed is
// left alone so replayed confirmations cannot double-move balances.
func (l *Ledger) Confirm(ctx context.Context, record *domain.ExecutionRecord, realizedOut uint64, priceImpact float64) error {
	current, err := l.records.GetByKey(ctx, record.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("load record for confirm: %w", err)
	}
	if current.Status == domain.StatusConfirmed {
		return nil
	}

	nowMs := l.now().UnixMilli()
	record.Status = domain.StatusConfirmed
	record.RealizedOut = realizedOut
	record.FinalizedAt = ptrInt64(nowMs)
	if err := l.records.Update(ctx, record); err != nil {
		return fmt.Errorf("confirm record: %w", err)
	}

	delta := int64(realizedOut)
	if record.Side == domain.SideSell {
		delta = -int64(record.AmountIn)
	}
	if err := l.positions.ApplyDelta(ctx, record.UserID, record.Mint, delta, nowMs); err != nil {
		// The record is already confirmed; log and keep going so the
		// position drift is visible instead of the trade vanishing.
		l.logger.Printf("position update failed for %s: %v", record.IdempotencyKey, err)
	}

	event := &domain.TradeEvent{
		IdempotencyKey: record.IdempotencyKey,
		TelegramID:     record.UserID,
		Mint:           record.Mint,
		Side:           record.Side,
		Venue:          record.Venue,
		AmountIn:       record.AmountIn,
		AmountOut:      realizedOut,
		PriceImpact:    priceImpact,
		Signature:      record.Signature,
		ExecutedAt:     nowMs,
	}
	if err := l.events.Append(ctx, event); err != nil {
		l.logger.Printf("trade event append failed for %s: %v", record.IdempotencyKey, err)
	}

	return nil
}

func ptrInt64(v int64) *int64 {
	return &v
}
