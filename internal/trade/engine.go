// Package trade is the execution core: it routes a trade request to its
// venue, prices it, enforces the slippage bound, and drives the submission
// through the execution ledger.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"solsniper/internal/domain"
	"solsniper/internal/guard"
	"solsniper/internal/ledger"
	"solsniper/internal/observability"
	"solsniper/internal/quote"
	"solsniper/internal/solana"
	"solsniper/internal/storage"
	"solsniper/internal/txbuilder"
	"solsniper/internal/venue"
	"solsniper/internal/wallet"
)

// Engine wires the venue resolver, quote engine, slippage guard,
// transaction submitter, and ledger into the four trading operations.
type Engine struct {
	resolver   *venue.Resolver
	quotes     *quote.Engine
	guard      *guard.Guard
	submitter  *txbuilder.Submitter
	ledger     *ledger.Ledger
	reconciler *ledger.Reconciler
	users      storage.UserStore
	chain      solana.Client
	metrics    *observability.Metrics
	logger     *log.Logger
	now        func() time.Time
}

// NewEngine assembles the trading engine. The engine itself serves as the
// guard's requoter, so the pre-submit recheck goes through the same
// resolve-and-quote path as the original quote.
func NewEngine(
	resolver *venue.Resolver,
	quotes *quote.Engine,
	l *ledger.Ledger,
	reconciler *ledger.Reconciler,
	submitter *txbuilder.Submitter,
	users storage.UserStore,
	chain solana.Client,
	metrics *observability.Metrics,
	logger *log.Logger,
	toleranceCeiling float64,
) *Engine {
	e := &Engine{
		resolver:   resolver,
		quotes:     quotes,
		submitter:  submitter,
		ledger:     l,
		reconciler: reconciler,
		users:      users,
		chain:      chain,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
	e.guard = guard.New(e, toleranceCeiling)
	return e
}

// Resolve classifies the token's current venue.
func (e *Engine) Resolve(ctx context.Context, mint string) (*domain.TokenVenueState, error) {
	state, err := e.resolver.Resolve(ctx, mint)
	if err != nil {
		return nil, err
	}
	e.metrics.VenueResolutions.WithLabelValues(string(state.Venue)).Inc()
	return state, nil
}

// Quote resolves, sizes, and prices a trade request, returning a guarded
// quote with MinOut already stamped from the request's tolerance. Sell
// percentages are converted to an absolute amount here, exactly once,
// under the user's lock so concurrent sells cannot size themselves from
// the same balance.
func (e *Engine) Quote(ctx context.Context, req *domain.TradeRequest) (*domain.Quote, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := e.guard.ValidateTolerance(req.SlippageTolerance); err != nil {
		return nil, err
	}

	started := e.now()
	defer func() {
		e.metrics.QuoteLatency.Observe(e.now().Sub(started).Seconds())
	}()

	state, err := e.Resolve(ctx, req.Mint)
	if err != nil {
		return nil, err
	}

	amountIn := req.AmountIn
	if req.Side == domain.SideSell {
		unlock := e.ledger.LockUser(req.UserID)
		amountIn, err = e.sizeSell(ctx, req)
		unlock()
		if err != nil {
			return nil, err
		}
	}

	q, err := e.quotes.Quote(state, req.Side, amountIn)
	if err != nil {
		return nil, err
	}
	if err := e.guard.Apply(q, req.SlippageTolerance); err != nil {
		return nil, err
	}
	return q, nil
}

// sizeSell converts a sell percentage into an absolute token amount from
// the wallet's current balance.
func (e *Engine) sizeSell(ctx context.Context, req *domain.TradeRequest) (uint64, error) {
	user, err := e.users.GetUser(ctx, req.UserID)
	if err != nil {
		return 0, fmt.Errorf("load user %d: %w", req.UserID, err)
	}

	balance, err := e.chain.GetTokenBalance(ctx, user.WalletAddress, req.Mint)
	if err != nil {
		return 0, fmt.Errorf("token balance: %w", err)
	}
	if balance == 0 {
		return 0, fmt.Errorf("%w: no balance of %s to sell", ErrAmountTooSmall, req.Mint)
	}

	// Basis points keep the percentage math in integers.
	bps := big.NewInt(int64(req.SellPercent * 100))
	amount := new(big.Int).Mul(new(big.Int).SetUint64(balance), bps)
	amount.Div(amount, big.NewInt(10_000))
	if !amount.IsUint64() || amount.Uint64() == 0 {
		return 0, fmt.Errorf("%w: %.2f%% of %d rounds to zero", ErrAmountTooSmall, req.SellPercent, balance)
	}
	return amount.Uint64(), nil
}

// Requote re-prices a quote's trade against fresh venue state. Implements
// guard.Requoter.
func (e *Engine) Requote(ctx context.Context, q *domain.Quote) (*domain.Quote, error) {
	state, err := e.resolver.Resolve(ctx, q.Mint)
	if err != nil {
		return nil, err
	}
	return e.quotes.Quote(state, q.Side, q.AmountIn)
}

var _ guard.Requoter = (*Engine)(nil)

// EnforceAndExecute performs the mandatory pre-submit slippage recheck and,
// if it passes, records, submits, and finalizes the trade. The user's lock
// is held for the whole span so the balance the trade was sized from cannot
// move underneath it.
func (e *Engine) EnforceAndExecute(ctx context.Context, req *domain.TradeRequest, q *domain.Quote) (*domain.ExecutionRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := e.ledger.LockUser(req.UserID)
	defer unlock()

	nowMs := e.now().UnixMilli()
	if err := q.Consume(nowMs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteExpired, err)
	}

	fresh, err := e.guard.Recheck(ctx, nowMs, q)
	if err != nil {
		if errors.Is(err, ErrSlippageExceeded) {
			e.metrics.SlippageRejects.Inc()
		}
		e.metrics.TradeErrors.WithLabelValues("recheck").Inc()
		return nil, err
	}

	record, err := e.ledger.Begin(ctx, fresh, req.UserID, req.IdempotencyKey)
	if err != nil {
		if errors.Is(err, ErrDuplicateRequest) {
			return record, err
		}
		e.metrics.TradeErrors.WithLabelValues("ledger").Inc()
		return nil, err
	}

	user, err := e.users.GetUser(ctx, req.UserID)
	if err != nil {
		e.failBeforeSubmit(ctx, record, fmt.Sprintf("load user: %v", err))
		return record, fmt.Errorf("load user %d: %w", req.UserID, err)
	}
	signer, err := wallet.FromSecretKey(user.SecretKey)
	if err != nil {
		e.failBeforeSubmit(ctx, record, fmt.Sprintf("load keypair: %v", err))
		return record, fmt.Errorf("load keypair: %w", err)
	}

	tx, err := e.submitter.Build(ctx, signer, fresh)
	if err != nil {
		e.failBeforeSubmit(ctx, record, fmt.Sprintf("build transaction: %v", err))
		return record, fmt.Errorf("build transaction: %w", err)
	}

	// The signature goes to disk before the transaction goes to the
	// cluster: a crash between the two leaves a record reconciliation can
	// settle by signature.
	if err := e.ledger.MarkSubmitted(ctx, record, tx.Signature); err != nil {
		e.metrics.TradeErrors.WithLabelValues("ledger").Inc()
		return record, err
	}

	submitted := e.now()
	res := e.submitter.Submit(ctx, tx)
	e.metrics.ExecutionLatency.WithLabelValues(string(res.Outcome)).Observe(e.now().Sub(submitted).Seconds())

	if err := e.finalize(ctx, record, fresh, res); err != nil {
		return record, err
	}
	e.metrics.TradesTotal.WithLabelValues(string(record.Side), string(record.Venue), string(record.Status)).Inc()
	return record, nil
}

// failBeforeSubmit rejects a record for a failure that happened strictly
// before submission, where nothing can have reached the chain.
func (e *Engine) failBeforeSubmit(ctx context.Context, record *domain.ExecutionRecord, reason string) {
	e.metrics.TradeErrors.WithLabelValues("build").Inc()
	if err := e.ledger.MarkRejected(ctx, record, reason); err != nil {
		e.logger.Printf("reject %s: %v", record.IdempotencyKey, err)
	}
}

// finalize maps the submitter's verdict onto the ledger.
func (e *Engine) finalize(ctx context.Context, record *domain.ExecutionRecord, q *domain.Quote, res txbuilder.Result) error {
	switch res.Outcome {
	case txbuilder.OutcomeConfirmed:
		realized := ledger.RealizedOut(ctx, e.chain, e.users, e.logger, record)
		if realized < record.ExpectedOut {
			e.metrics.RealizedOutBelow.Inc()
		}
		if err := e.ledger.Confirm(ctx, record, realized, q.PriceImpact); err != nil {
			return err
		}
		e.metrics.LastSuccessfulTrade.SetToCurrentTime()
		e.logger.Printf("trade %s confirmed: %s %d -> %d (min %d)",
			record.IdempotencyKey, record.Side, record.AmountIn, realized, record.MinOut)
		return nil

	case txbuilder.OutcomeSubmissionRejected:
		return e.ledger.MarkRejected(ctx, record, "submission rejected: "+res.Reason)

	case txbuilder.OutcomeOnChainFailure:
		return e.ledger.MarkRejected(ctx, record, "failed on chain: "+res.Reason)

	default:
		e.logger.Printf("trade %s indeterminate: %s", record.IdempotencyKey, res.Reason)
		return e.ledger.MarkIndeterminate(ctx, record, res.Reason)
	}
}

// Reconcile runs one reconciliation pass over all unsettled records.
func (e *Engine) Reconcile(ctx context.Context) (int, error) {
	settled, err := e.reconciler.Run(ctx)
	e.metrics.ReconcileRuns.Inc()
	e.metrics.ReconcileSettled.Add(float64(settled))
	if err == nil {
		e.metrics.LastSuccessfulReconcile.SetToCurrentTime()
	}
	return settled, err
}
