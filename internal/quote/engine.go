// Package quote prices swaps against a venue snapshot. The engine is pure
// math over the snapshot it is handed: it performs no I/O, so two calls with
// the same state and amount always produce the same quote.
package quote

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"solsniper/internal/domain"
)

var (
	// ErrInsufficientLiquidity means the trade would drain the venue past
	// the safety ceiling and no sane output exists.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrStaleVenueState means the snapshot is older than the engine accepts.
	ErrStaleVenueState = errors.New("venue state too stale to quote")

	// ErrAmountTooSmall means the input rounds to zero output.
	ErrAmountTooSmall = errors.New("input amount too small")
)

const feeDenominator = 10_000

// Config bounds the engine's tolerance for stale state and thin venues.
type Config struct {
	// MaxStateAge is the oldest venue snapshot the engine will price.
	MaxStateAge time.Duration

	// QuoteTTL is how long a produced quote stays executable.
	QuoteTTL time.Duration

	// MaxDrainRatio caps output as a share of the output-side reserve.
	MaxDrainRatio float64
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxStateAge:   10 * time.Second,
		QuoteTTL:      30 * time.Second,
		MaxDrainRatio: 0.90,
	}
}

// Engine computes swap quotes.
type Engine struct {
	cfg Config
	now func() time.Time
}

// NewEngine creates an engine with the given config; zero fields fall back
// to defaults.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MaxStateAge <= 0 {
		cfg.MaxStateAge = def.MaxStateAge
	}
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = def.QuoteTTL
	}
	if cfg.MaxDrainRatio <= 0 || cfg.MaxDrainRatio >= 1 {
		cfg.MaxDrainRatio = def.MaxDrainRatio
	}
	return &Engine{cfg: cfg, now: time.Now}
}

// Quote prices a swap of amountIn against the venue snapshot. For buys the
// input is the quote currency and the output is the token; for sells the
// reverse. MinOut is left at zero: only the slippage guard sets it.
func (e *Engine) Quote(state *domain.TokenVenueState, side domain.Side, amountIn uint64) (*domain.Quote, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}
	if amountIn == 0 {
		return nil, fmt.Errorf("%w: zero input", ErrAmountTooSmall)
	}

	now := e.now()
	if state.AgeMs(now.UnixMilli()) > e.cfg.MaxStateAge.Milliseconds() {
		return nil, fmt.Errorf("%w: observed %dms ago", ErrStaleVenueState, state.AgeMs(now.UnixMilli()))
	}

	var reserveIn, reserveOut uint64
	switch side {
	case domain.SideBuy:
		reserveIn, reserveOut = state.QuoteReserve, state.BaseReserve
	case domain.SideSell:
		reserveIn, reserveOut = state.BaseReserve, state.QuoteReserve
	default:
		return nil, fmt.Errorf("unknown side %q", side)
	}
	if reserveIn == 0 || reserveOut == 0 {
		return nil, fmt.Errorf("%w: empty reserves", ErrInsufficientLiquidity)
	}

	out := constantProductOut(reserveIn, reserveOut, amountIn, state.FeeBps)
	if out == 0 {
		return nil, fmt.Errorf("%w: output rounds to zero", ErrAmountTooSmall)
	}
	if float64(out) > e.cfg.MaxDrainRatio*float64(reserveOut) {
		return nil, fmt.Errorf("%w: output %d exceeds %.0f%% of reserve %d",
			ErrInsufficientLiquidity, out, e.cfg.MaxDrainRatio*100, reserveOut)
	}

	return &domain.Quote{
		Mint:        state.Mint,
		Side:        side,
		AmountIn:    amountIn,
		ExpectedOut: out,
		PriceImpact: priceImpact(reserveIn, reserveOut, amountIn, out),
		VenueState:  state,
		ExpiresAt:   now.Add(e.cfg.QuoteTTL).UnixMilli(),
	}, nil
}

// constantProductOut computes the swap output with the fee taken on input:
//
//	out = in·(D−fee)·Rout / (Rin·D + in·(D−fee))
//
// where D is the fee denominator. Intermediates use big.Int because the
// numerator overflows uint64 for realistic reserves.
func constantProductOut(reserveIn, reserveOut, amountIn uint64, feeBps uint32) uint64 {
	inAfterFee := new(big.Int).Mul(
		new(big.Int).SetUint64(amountIn),
		big.NewInt(feeDenominator-int64(feeBps)),
	)

	num := new(big.Int).Mul(inAfterFee, new(big.Int).SetUint64(reserveOut))
	den := new(big.Int).Mul(new(big.Int).SetUint64(reserveIn), big.NewInt(feeDenominator))
	den.Add(den, inAfterFee)

	out := num.Div(num, den)
	if !out.IsUint64() {
		return 0
	}
	return out.Uint64()
}

// priceImpact is how far the realized rate falls below the spot rate,
// in [0, 1).
func priceImpact(reserveIn, reserveOut, amountIn, amountOut uint64) float64 {
	spot := float64(reserveOut) / float64(reserveIn)
	realized := float64(amountOut) / float64(amountIn)
	impact := 1 - realized/spot
	if impact < 0 {
		return 0
	}
	return impact
}
