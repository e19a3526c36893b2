package ledger

import (
	"context"
	"fmt"
	"log"
	"time"

	"solsniper/internal/domain"
	"solsniper/internal/solana"
	"solsniper/internal/storage"
)

// Reconciler settles stuck execution records against the chain, by
// signature only. It never resubmits: a record with a signature either
// landed or it did not, and the chain is the sole authority on which.
type Reconciler struct {
	ledger  *Ledger
	records storage.ExecutionRecordStore
	users   storage.UserStore
	chain   solana.ChainWriter
	logger  *log.Logger
	now     func() time.Time

	// expiryWindow is how long after creation an unknown signature is
	// treated as expired. Past the blockhash lifetime a transaction the
	// cluster has never seen can no longer land.
	expiryWindow time.Duration
}

// DefaultExpiryWindow is deliberately generous next to the ~90s blockhash
// lifetime so a lagging RPC node cannot make us reject a landed trade.
const DefaultExpiryWindow = 10 * time.Minute

// NewReconciler creates a reconciler. A non-positive expiryWindow falls
// back to the default.
func NewReconciler(ledger *Ledger, records storage.ExecutionRecordStore, users storage.UserStore, chain solana.ChainWriter, logger *log.Logger, expiryWindow time.Duration) *Reconciler {
	if expiryWindow <= 0 {
		expiryWindow = DefaultExpiryWindow
	}
	return &Reconciler{
		ledger:       ledger,
		records:      records,
		users:        users,
		chain:        chain,
		logger:       logger,
		now:          time.Now,
		expiryWindow: expiryWindow,
	}
}

// Run settles every record that is not in a terminal state: pending
// leftovers from a crash, submitted records whose confirmation never
// arrived, and indeterminate records parked earlier. Returns how many
// records reached a terminal state.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	settled := 0
	for _, status := range []domain.ExecutionStatus{
		domain.StatusPending, domain.StatusSubmitted, domain.StatusIndeterminate,
	} {
		records, err := r.records.ListByStatus(ctx, status)
		if err != nil {
			return settled, fmt.Errorf("list %s records: %w", status, err)
		}
		for _, record := range records {
			done, err := r.ReconcileRecord(ctx, record)
			if err != nil {
				r.logger.Printf("reconcile %s: %v", record.IdempotencyKey, err)
				continue
			}
			if done {
				settled++
			}
		}
	}
	return settled, nil
}

// ReconcileRecord settles one record. Returns true when the record reached
// a terminal state.
func (r *Reconciler) ReconcileRecord(ctx context.Context, record *domain.ExecutionRecord) (bool, error) {
	if record.Status.Terminal() {
		return true, nil
	}

	unlock := r.ledger.LockUser(record.UserID)
	defer unlock()

	// A pending record has no signature: the crash happened before
	// submission, so nothing can have landed.
	if record.Status == domain.StatusPending {
		if err := r.ledger.MarkRejected(ctx, record, "crashed before submission"); err != nil {
			return false, err
		}
		return true, nil
	}

	status, err := r.chain.GetSignatureStatus(ctx, record.Signature)
	if err != nil {
		return false, fmt.Errorf("signature status: %w", err)
	}

	switch {
	case status.Confirmed():
		realized := r.realizedOut(ctx, record)
		if err := r.ledger.Confirm(ctx, record, realized, 0); err != nil {
			return false, err
		}
		r.logger.Printf("reconciled %s: confirmed, realized %d", record.IdempotencyKey, realized)
		return true, nil

	case status.Failed():
		reason := fmt.Sprintf("transaction error: %v", status.Err)
		if err := r.ledger.MarkRejected(ctx, record, reason); err != nil {
			return false, err
		}
		r.logger.Printf("reconciled %s: failed on chain", record.IdempotencyKey)
		return true, nil
	}

	// Unknown signature. Once the record is old enough that its blockhash
	// can no longer be valid, the transaction will never land.
	age := time.Duration(r.now().UnixMilli()-record.CreatedAt) * time.Millisecond
	if age > r.expiryWindow {
		if err := r.ledger.MarkRejected(ctx, record, "transaction expired unobserved"); err != nil {
			return false, err
		}
		r.logger.Printf("reconciled %s: expired after %s", record.IdempotencyKey, age)
		return true, nil
	}

	if record.Status == domain.StatusSubmitted {
		if err := r.ledger.MarkIndeterminate(ctx, record, "signature unknown to cluster"); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (r *Reconciler) realizedOut(ctx context.Context, record *domain.ExecutionRecord) uint64 {
	return RealizedOut(ctx, r.chain, r.users, r.logger, record)
}

// RealizedOut recovers the realized output from transaction meta: the
// wallet's token delta for buys, its lamport delta for sells. When the meta
// is unavailable the on-chain guard still bounds the trade, so MinOut is
// the conservative fallback.
func RealizedOut(ctx context.Context, chain solana.ChainWriter, users storage.UserStore, logger *log.Logger, record *domain.ExecutionRecord) uint64 {
	user, err := users.GetUser(ctx, record.UserID)
	if err != nil {
		logger.Printf("realized out for %s: load user: %v", record.IdempotencyKey, err)
		return record.MinOut
	}

	tx, err := chain.GetTransaction(ctx, record.Signature)
	if err != nil || tx == nil || tx.Meta == nil {
		return record.MinOut
	}

	var delta int64
	if record.Side == domain.SideBuy {
		delta = tx.Meta.TokenDelta(user.WalletAddress, record.Mint)
	} else {
		delta = tx.Meta.LamportsDelta(user.WalletAddress)
	}
	if delta <= 0 {
		return record.MinOut
	}
	return uint64(delta)
}
