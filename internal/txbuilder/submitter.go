package txbuilder

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mr-tron/base58"

	"solsniper/internal/domain"
	"solsniper/internal/solana"
	"solsniper/internal/wallet"
)

// Outcome classifies what happened to a submitted transaction.
type Outcome string

const (
	// OutcomeConfirmed: included and succeeded.
	OutcomeConfirmed Outcome = "CONFIRMED"

	// OutcomeSubmissionRejected: the chain refused the transaction before
	// inclusion. Nothing landed; safe to report as a clean failure.
	OutcomeSubmissionRejected Outcome = "SUBMISSION_REJECTED"

	// OutcomeOnChainFailure: included but the program errored, typically
	// the min-out guard firing. Fees were paid, the swap did not happen.
	OutcomeOnChainFailure Outcome = "ON_CHAIN_FAILURE"

	// OutcomeIndeterminate: the outcome is unknown within the wait budget.
	// The transaction may still land; only reconciliation may settle it.
	OutcomeIndeterminate Outcome = "INDETERMINATE"
)

// Result is the submitter's verdict on one transaction.
type Result struct {
	Signature string
	Outcome   Outcome
	Reason    string
}

// Config bounds confirmation polling.
type Config struct {
	// PollInterval is the initial status poll spacing; it doubles up to
	// PollMaxInterval.
	PollInterval    time.Duration
	PollMaxInterval time.Duration

	// WaitBudget is the total time to wait before declaring the outcome
	// indeterminate.
	WaitBudget time.Duration
}

// DefaultConfig returns the polling defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:    500 * time.Millisecond,
		PollMaxInterval: 4 * time.Second,
		WaitBudget:      60 * time.Second,
	}
}

// Submitter builds, signs, submits, and confirms swap transactions. It never
// retries a submission: a retry after an unknown outcome risks executing the
// swap twice, and settling unknowns is the reconciler's job.
type Submitter struct {
	client solana.Client
	cfg    Config
	logger *log.Logger
}

// NewSubmitter creates a submitter; zero config fields fall back to defaults.
func NewSubmitter(client solana.Client, cfg Config, logger *log.Logger) *Submitter {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PollMaxInterval <= 0 {
		cfg.PollMaxInterval = def.PollMaxInterval
	}
	if cfg.WaitBudget <= 0 {
		cfg.WaitBudget = def.WaitBudget
	}
	return &Submitter{client: client, cfg: cfg, logger: logger}
}

// SignedTransaction is a ready-to-submit transaction. The signature is known
// before submission, so an unknown submission outcome is still reconcilable.
type SignedTransaction struct {
	Base64    string
	Signature string
}

// Build assembles and signs the swap transaction for a guarded quote.
func (s *Submitter) Build(ctx context.Context, signer wallet.Signer, q *domain.Quote) (*SignedTransaction, error) {
	if !q.Guarded() {
		return nil, fmt.Errorf("refusing to build transaction without a slippage bound")
	}

	ins, err := swapInstruction(signer.PublicKey(), q)
	if err != nil {
		return nil, fmt.Errorf("build instruction: %w", err)
	}

	blockhash, err := s.client.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch blockhash: %w", err)
	}

	message, err := serializeMessage(signer.PublicKey(), blockhash, []Instruction{ins})
	if err != nil {
		return nil, fmt.Errorf("serialize message: %w", err)
	}

	sig, err := signer.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}

	tx, err := serializeTransaction([][]byte{sig}, message)
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}

	return &SignedTransaction{
		Base64:    base64.StdEncoding.EncodeToString(tx),
		Signature: base58.Encode(sig),
	}, nil
}

// Submit sends the transaction and waits for its outcome. The call is made
// exactly once; every path after it returns a Result keyed by the signature.
func (s *Submitter) Submit(ctx context.Context, tx *SignedTransaction) Result {
	sig, err := s.client.SendTransaction(ctx, tx.Base64)
	if err != nil {
		var rpcErr *solana.RPCError
		if errors.As(err, &rpcErr) {
			// Chain refused it; nothing was included.
			return Result{
				Signature: tx.Signature,
				Outcome:   OutcomeSubmissionRejected,
				Reason:    rpcErr.Message,
			}
		}
		// Transport failure: the transaction may or may not have reached
		// the cluster. Fall through to polling by our own signature.
		s.logger.Printf("send outcome unknown for %s: %v", tx.Signature, err)
		sig = tx.Signature
	}

	return s.awaitConfirmation(ctx, sig)
}

// awaitConfirmation polls signature status with exponential backoff until
// the wait budget expires.
func (s *Submitter) awaitConfirmation(ctx context.Context, signature string) Result {
	deadline := time.Now().Add(s.cfg.WaitBudget)
	interval := s.cfg.PollInterval

	for {
		status, err := s.client.GetSignatureStatus(ctx, signature)
		if err != nil {
			s.logger.Printf("status poll failed for %s: %v", signature, err)
		} else if status.Confirmed() {
			return Result{Signature: signature, Outcome: OutcomeConfirmed}
		} else if status.Failed() {
			return Result{
				Signature: signature,
				Outcome:   OutcomeOnChainFailure,
				Reason:    fmt.Sprintf("transaction error: %v", status.Err),
			}
		}

		if time.Now().After(deadline) {
			return Result{
				Signature: signature,
				Outcome:   OutcomeIndeterminate,
				Reason:    fmt.Sprintf("no confirmation within %s", s.cfg.WaitBudget),
			}
		}

		select {
		case <-ctx.Done():
			return Result{
				Signature: signature,
				Outcome:   OutcomeIndeterminate,
				Reason:    fmt.Sprintf("canceled while awaiting confirmation: %v", ctx.Err()),
			}
		case <-time.After(interval):
		}

		interval *= 2
		if interval > s.cfg.PollMaxInterval {
			interval = s.cfg.PollMaxInterval
		}
	}
}
