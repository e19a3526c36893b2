package domain

import "fmt"

// Side of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// TradeRequest is the caller's intent. Buys carry an absolute input amount
// in lamports; sells carry a percentage of the held token balance, resolved
// to an absolute amount exactly once at quote time.
type TradeRequest struct {
	UserID int64  // telegram user id
	Mint   string // token mint address
	Side   Side

	// AmountIn is the absolute input amount for buys (lamports).
	AmountIn uint64

	// SellPercent is the share of the held balance to sell, in (0, 100].
	SellPercent float64

	// SlippageTolerance is a fraction, e.g. 0.15 for 15%.
	SlippageTolerance float64

	// IdempotencyKey is unique per logical user action, not per retry.
	IdempotencyKey string
}

// Validate checks structural invariants. Tolerance bounds are enforced by
// the slippage guard, which owns the configured ceiling.
func (r *TradeRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("nil trade request")
	}
	if r.UserID == 0 {
		return fmt.Errorf("missing user id")
	}
	if r.Mint == "" {
		return fmt.Errorf("missing mint")
	}
	if r.IdempotencyKey == "" {
		return fmt.Errorf("missing idempotency key")
	}
	switch r.Side {
	case SideBuy:
		if r.AmountIn == 0 {
			return fmt.Errorf("buy requires a positive input amount")
		}
	case SideSell:
		if r.SellPercent <= 0 || r.SellPercent > 100 {
			return fmt.Errorf("sell percent %.2f outside (0, 100]", r.SellPercent)
		}
	default:
		return fmt.Errorf("unknown side %q", r.Side)
	}
	return nil
}
