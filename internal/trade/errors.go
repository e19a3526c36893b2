package trade

import (
	"solsniper/internal/guard"
	"solsniper/internal/ledger"
	"solsniper/internal/quote"
	"solsniper/internal/venue"
)

// The engine surfaces one error vocabulary so callers branch on a single
// set of sentinels regardless of which stage produced the failure.
var (
	ErrTokenNotFound          = venue.ErrTokenNotFound
	ErrInsufficientLiquidity  = quote.ErrInsufficientLiquidity
	ErrStaleVenueState        = quote.ErrStaleVenueState
	ErrAmountTooSmall         = quote.ErrAmountTooSmall
	ErrInvalidTolerance       = guard.ErrInvalidTolerance
	ErrSlippageExceeded       = guard.ErrSlippageExceeded
	ErrQuoteExpired           = guard.ErrQuoteExpired
	ErrDuplicateRequest       = ledger.ErrDuplicateRequest
	ErrReconciliationRequired = ledger.ErrReconciliationRequired
)
