package domain

import "fmt"

// VenueKind identifies the trading mechanism currently pricing a token.
type VenueKind string

const (
	VenueBondingCurve VenueKind = "BONDING_CURVE"
	VenueAmmPool      VenueKind = "AMM_POOL"
)

// QuoteCurrency is the currency on the quote side of a venue.
// Bonding curves are always native-quoted; bonk.fun pools may be
// paired with SOL or with the USD1 stablecoin.
type QuoteCurrency string

const (
	QuoteNative QuoteCurrency = "NATIVE"
	QuoteStable QuoteCurrency = "STABLE"
)

// TokenVenueState is a point-in-time snapshot of the venue that currently
// prices a token. It is owned by the single request that resolved it and
// is never shared across concurrent trades.
type TokenVenueState struct {
	Mint  string // token mint address (base58)
	Venue VenueKind
	Quote QuoteCurrency

	// PoolID is the bonding curve account or AMM pool account address.
	PoolID string

	// Program is the on-chain program that owns PoolID.
	Program string

	// Reserves observed at resolution time. For bonding curves these are
	// the virtual reserves the curve formula operates on.
	BaseReserve  uint64 // token side, raw units
	QuoteReserve uint64 // quote side, lamports or raw stable units

	// FeeBps is the venue's swap fee in basis points.
	FeeBps uint32

	ObservedAt int64 // unix ms
}

// Validate checks the venue state invariants.
func (s *TokenVenueState) Validate() error {
	if s == nil {
		return fmt.Errorf("nil venue state")
	}
	if s.Mint == "" || s.PoolID == "" {
		return fmt.Errorf("venue state missing mint or pool id")
	}
	switch s.Venue {
	case VenueBondingCurve:
		if s.Quote != QuoteNative {
			return fmt.Errorf("bonding curve must be native-quoted, got %s", s.Quote)
		}
	case VenueAmmPool:
		if s.Quote != QuoteNative && s.Quote != QuoteStable {
			return fmt.Errorf("unknown quote currency %q", s.Quote)
		}
	default:
		return fmt.Errorf("unknown venue kind %q", s.Venue)
	}
	return nil
}

// AgeMs returns the age of the snapshot relative to nowMs.
func (s *TokenVenueState) AgeMs(nowMs int64) int64 {
	return nowMs - s.ObservedAt
}
