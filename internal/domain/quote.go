package domain

import "fmt"

// Quote is a priced execution plan computed against a venue snapshot.
// A quote is single-use: once executed or expired it must never be
// silently re-derived.
type Quote struct {
	Mint string
	Side Side

	AmountIn    uint64
	ExpectedOut uint64

	// MinOut is the minimum acceptable output after the slippage bound is
	// applied. Zero until the slippage guard has accepted the quote.
	MinOut uint64

	// PriceImpact is 1 - (out/in)/spot, in [0, 1+).
	PriceImpact float64

	// VenueState is the snapshot the quote was computed against.
	VenueState *TokenVenueState

	ExpiresAt int64 // unix ms

	used bool
}

// Expired reports whether the quote has passed its expiry.
func (q *Quote) Expired(nowMs int64) bool {
	return nowMs >= q.ExpiresAt
}

// Consume marks the quote as used. A second consume fails: quotes are owned
// by a single request and executed at most once.
func (q *Quote) Consume(nowMs int64) error {
	if q.used {
		return fmt.Errorf("quote already consumed")
	}
	if q.Expired(nowMs) {
		return fmt.Errorf("quote expired")
	}
	q.used = true
	return nil
}

// Guarded reports whether the slippage guard has set the minimum output.
func (q *Quote) Guarded() bool {
	return q.MinOut > 0
}
