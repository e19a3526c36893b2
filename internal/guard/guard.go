// Package guard enforces the slippage bound between quoting and submission.
// The guard never widens a bound or clamps a tolerance: a quote that no
// longer satisfies the user's tolerance is rejected, not adjusted.
package guard

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"solsniper/internal/domain"
)

var (
	// ErrInvalidTolerance means the tolerance is outside (0, ceiling].
	ErrInvalidTolerance = errors.New("invalid slippage tolerance")

	// ErrSlippageExceeded means the venue moved past the user's tolerance
	// between quoting and submission.
	ErrSlippageExceeded = errors.New("slippage tolerance exceeded")

	// ErrQuoteExpired means the quote aged out before the guard ran.
	ErrQuoteExpired = errors.New("quote expired")
)

// DefaultToleranceCeiling is the widest tolerance the guard accepts.
// Anything wider than 50% is a fat-finger, not a preference.
const DefaultToleranceCeiling = 0.50

// Requoter re-prices a trade against fresh venue state. The trade engine
// satisfies this with a resolve-then-quote round trip.
type Requoter interface {
	Requote(ctx context.Context, q *domain.Quote) (*domain.Quote, error)
}

// Guard validates tolerances and performs the mandatory pre-submit recheck.
type Guard struct {
	requoter Requoter
	ceiling  float64
}

// New creates a guard. A non-positive ceiling falls back to the default.
func New(requoter Requoter, ceiling float64) *Guard {
	if ceiling <= 0 || ceiling > 1 {
		ceiling = DefaultToleranceCeiling
	}
	return &Guard{requoter: requoter, ceiling: ceiling}
}

// ValidateTolerance checks that tolerance sits in (0, ceiling].
func (g *Guard) ValidateTolerance(tolerance float64) error {
	if tolerance <= 0 || tolerance > g.ceiling {
		return fmt.Errorf("%w: %.4f outside (0, %.2f]", ErrInvalidTolerance, tolerance, g.ceiling)
	}
	return nil
}

// Apply stamps MinOut onto the quote from the user's tolerance:
// MinOut = ExpectedOut·(1 − tolerance), rounded down.
func (g *Guard) Apply(q *domain.Quote, tolerance float64) error {
	if err := g.ValidateTolerance(tolerance); err != nil {
		return err
	}
	q.MinOut = minOut(q.ExpectedOut, tolerance)
	if q.MinOut == 0 {
		return fmt.Errorf("%w: bound rounds to zero for output %d", ErrInvalidTolerance, q.ExpectedOut)
	}
	return nil
}

// Recheck re-prices the trade against fresh venue state and rejects the
// quote when the fresh expected output falls below the original MinOut.
// On success it returns the fresh quote carrying the ORIGINAL MinOut, so
// the bound submitted on-chain is the one the user accepted.
func (g *Guard) Recheck(ctx context.Context, nowMs int64, q *domain.Quote) (*domain.Quote, error) {
	if !q.Guarded() {
		return nil, fmt.Errorf("quote has no slippage bound")
	}
	if q.Expired(nowMs) {
		return nil, ErrQuoteExpired
	}

	fresh, err := g.requoter.Requote(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("pre-submit requote: %w", err)
	}

	if fresh.ExpectedOut < q.MinOut {
		return nil, fmt.Errorf("%w: fresh output %d below bound %d",
			ErrSlippageExceeded, fresh.ExpectedOut, q.MinOut)
	}

	fresh.MinOut = q.MinOut
	return fresh, nil
}

// minOut computes out·(1−tolerance) in integer arithmetic, rounding down so
// the bound is never looser than requested.
func minOut(expectedOut uint64, tolerance float64) uint64 {
	// tolerance is a fraction with at most basis-point resolution in
	// practice; scale through ppm to stay exact in integers.
	keepPpm := int64((1 - tolerance) * 1_000_000)
	if keepPpm <= 0 {
		return 0
	}
	v := new(big.Int).Mul(new(big.Int).SetUint64(expectedOut), big.NewInt(keepPpm))
	v.Div(v, big.NewInt(1_000_000))
	return v.Uint64()
}
