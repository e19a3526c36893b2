// Package venue determines which trading mechanism currently prices a token:
// a pre-migration bonding curve or a post-migration AMM pool, and for
// bonk.fun pools which quote currency backs the pair.
package venue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solsniper/internal/domain"
	"solsniper/internal/solana"
)

// ErrTokenNotFound is returned when neither a bonding curve nor an AMM pool
// exists for the token.
var ErrTokenNotFound = errors.New("token not found on any venue")

// Resolver classifies a token's current trading venue. Results are not
// cached here: venue state flips abruptly at migration, so staleness
// control belongs to callers that choose to hold on to a state.
type Resolver struct {
	reader solana.ChainReader
	now    func() time.Time
}

// NewResolver creates a Resolver over the given chain reader.
func NewResolver(reader solana.ChainReader) *Resolver {
	return &Resolver{reader: reader, now: time.Now}
}

// poolCandidate is one AMM pool location to probe.
type poolCandidate struct {
	program   string
	quoteMint string
	currency  domain.QuoteCurrency
}

var poolCandidates = []poolCandidate{
	{program: PumpSwap, quoteMint: WSOLMint, currency: domain.QuoteNative},
	{program: RaydiumCPMM, quoteMint: WSOLMint, currency: domain.QuoteNative},
	{program: RaydiumCPMM, quoteMint: USD1Mint, currency: domain.QuoteStable},
}

// Resolve determines the current venue state for a token. The launchpad
// curves are checked first, pump.fun then bonk.fun; a curve that exists and
// has not completed migration wins. Otherwise the AMM pools are probed and,
// when several exist, the one with the greater quote-side reserve is
// selected so thin pools are never routed through.
func (r *Resolver) Resolve(ctx context.Context, mint string) (*domain.TokenVenueState, error) {
	curve, err := r.resolveCurve(ctx, mint)
	if err != nil {
		return nil, err
	}
	if curve != nil {
		return curve, nil
	}

	launch, err := r.resolveLaunchCurve(ctx, mint)
	if err != nil {
		return nil, err
	}
	if launch != nil {
		return launch, nil
	}

	return r.resolvePool(ctx, mint)
}

func (r *Resolver) resolveCurve(ctx context.Context, mint string) (*domain.TokenVenueState, error) {
	curveAddr, err := BondingCurveAddress(mint)
	if err != nil {
		return nil, fmt.Errorf("derive bonding curve: %w", err)
	}

	info, err := r.reader.GetAccountInfo(ctx, curveAddr)
	if err != nil {
		return nil, fmt.Errorf("fetch bonding curve %s: %w", curveAddr, err)
	}
	if info == nil || info.Owner != PumpFun {
		return nil, nil
	}

	state, err := parseCurveState(info.Data)
	if err != nil {
		return nil, fmt.Errorf("parse bonding curve %s: %w", curveAddr, err)
	}
	if state.Complete {
		// Migrated; the AMM pool is authoritative now.
		return nil, nil
	}

	return &domain.TokenVenueState{
		Mint:         mint,
		Venue:        domain.VenueBondingCurve,
		Quote:        domain.QuoteNative,
		PoolID:       curveAddr,
		Program:      PumpFun,
		BaseReserve:  state.VirtualTokenReserves,
		QuoteReserve: state.VirtualSolReserves,
		FeeBps:       BondingCurveFeeBps,
		ObservedAt:   r.now().UnixMilli(),
	}, nil
}

func (r *Resolver) resolveLaunchCurve(ctx context.Context, mint string) (*domain.TokenVenueState, error) {
	launchAddr, err := LaunchCurveAddress(mint)
	if err != nil {
		return nil, fmt.Errorf("derive launchpad curve: %w", err)
	}

	info, err := r.reader.GetAccountInfo(ctx, launchAddr)
	if err != nil {
		return nil, fmt.Errorf("fetch launchpad curve %s: %w", launchAddr, err)
	}
	if info == nil || info.Owner != LaunchLab {
		return nil, nil
	}

	state, err := parseLaunchCurveState(info.Data)
	if err != nil {
		return nil, fmt.Errorf("parse launchpad curve %s: %w", launchAddr, err)
	}
	if state.Migrated {
		// Migrated; the AMM pool is authoritative now.
		return nil, nil
	}

	return &domain.TokenVenueState{
		Mint:         mint,
		Venue:        domain.VenueBondingCurve,
		Quote:        domain.QuoteNative,
		PoolID:       launchAddr,
		Program:      LaunchLab,
		BaseReserve:  state.VirtualBase,
		QuoteReserve: state.VirtualQuote,
		FeeBps:       BondingCurveFeeBps,
		ObservedAt:   r.now().UnixMilli(),
	}, nil
}

func (r *Resolver) resolvePool(ctx context.Context, mint string) (*domain.TokenVenueState, error) {
	var best *domain.TokenVenueState

	for _, cand := range poolCandidates {
		state, err := r.probePool(ctx, mint, cand)
		if err != nil {
			return nil, err
		}
		if state == nil {
			continue
		}
		if best == nil || state.QuoteReserve > best.QuoteReserve {
			best = state
		}
	}

	if best == nil {
		return nil, ErrTokenNotFound
	}
	return best, nil
}

func (r *Resolver) probePool(ctx context.Context, mint string, cand poolCandidate) (*domain.TokenVenueState, error) {
	poolAddr, err := PoolAddress(cand.program, mint, cand.quoteMint)
	if err != nil {
		return nil, fmt.Errorf("derive pool: %w", err)
	}

	info, err := r.reader.GetAccountInfo(ctx, poolAddr)
	if err != nil {
		return nil, fmt.Errorf("fetch pool %s: %w", poolAddr, err)
	}
	if info == nil || info.Owner != cand.program {
		return nil, nil
	}

	pool, err := parsePoolState(info.Data)
	if err != nil {
		return nil, fmt.Errorf("parse pool %s: %w", poolAddr, err)
	}

	baseReserve, err := r.vaultBalance(ctx, pool.BaseVault)
	if err != nil {
		return nil, err
	}
	quoteReserve, err := r.vaultBalance(ctx, pool.QuoteVault)
	if err != nil {
		return nil, err
	}

	feeBps := pool.FeeBps
	if feeBps == 0 {
		feeBps = AmmPoolFeeBps
	}

	return &domain.TokenVenueState{
		Mint:         mint,
		Venue:        domain.VenueAmmPool,
		Quote:        cand.currency,
		PoolID:       poolAddr,
		Program:      cand.program,
		BaseReserve:  baseReserve,
		QuoteReserve: quoteReserve,
		FeeBps:       feeBps,
		ObservedAt:   r.now().UnixMilli(),
	}, nil
}

func (r *Resolver) vaultBalance(ctx context.Context, vault string) (uint64, error) {
	info, err := r.reader.GetAccountInfo(ctx, vault)
	if err != nil {
		return 0, fmt.Errorf("fetch vault %s: %w", vault, err)
	}
	if info == nil {
		return 0, fmt.Errorf("vault %s missing", vault)
	}
	amount, err := parseTokenAccountAmount(info.Data)
	if err != nil {
		return 0, fmt.Errorf("parse vault %s: %w", vault, err)
	}
	return amount, nil
}
