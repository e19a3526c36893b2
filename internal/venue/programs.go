package venue

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// On-chain program and mint addresses.
const (
	// PumpFun is the pump.fun bonding curve program.
	PumpFun = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

	// PumpSwap is the pump.fun AMM tokens migrate into.
	PumpSwap = "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"

	// LaunchLab is the Raydium launchpad program behind bonk.fun.
	LaunchLab = "LanMV9sAd7wArD4vJFi2qDdfnVhFxYSUg6eADduJ3uj"

	// RaydiumCPMM is the constant-product AMM bonk.fun tokens migrate into.
	RaydiumCPMM = "CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C"

	// WSOLMint is the wrapped SOL mint.
	WSOLMint = "So11111111111111111111111111111111111111112"

	// USD1Mint is the USD1 stablecoin mint used by bonk.fun stable pairs.
	USD1Mint = "USD1ttGY1N17NEEHLmELoaybftRBUSErhqYiQzvEmuB"
)

// Default swap fees in basis points.
const (
	BondingCurveFeeBps = 100 // 1% platform fee on the curve
	AmmPoolFeeBps      = 30  // 0.30% pool fee
)

const pdaMarker = "ProgramDerivedAddress"

// FindProgramAddress derives the program address for the given seeds,
// walking bump seeds down from 255 until the result falls off the curve.
func FindProgramAddress(seeds [][]byte, programID string) (string, uint8, error) {
	program, err := base58.Decode(programID)
	if err != nil {
		return "", 0, fmt.Errorf("decode program id: %w", err)
	}

	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{byte(bump)})
		h.Write(program)
		h.Write([]byte(pdaMarker))
		candidate := h.Sum(nil)

		// A valid PDA must not be on the ed25519 curve.
		if _, err := new(edwards25519.Point).SetBytes(candidate); err != nil {
			return base58.Encode(candidate), uint8(bump), nil
		}
	}

	return "", 0, fmt.Errorf("no viable program address for %s", programID)
}

// BondingCurveAddress derives the pump.fun bonding curve account for a mint.
func BondingCurveAddress(mint string) (string, error) {
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return "", fmt.Errorf("decode mint: %w", err)
	}
	addr, _, err := FindProgramAddress([][]byte{[]byte("bonding-curve"), mintBytes}, PumpFun)
	return addr, err
}

// LaunchCurveAddress derives the LaunchLab launchpad pool for a mint.
// bonk.fun launchpad curves are always paired with WSOL.
func LaunchCurveAddress(mint string) (string, error) {
	return PoolAddress(LaunchLab, mint, WSOLMint)
}

// PoolAddress derives the canonical AMM pool account for a base/quote pair
// under the given AMM program.
func PoolAddress(program, baseMint, quoteMint string) (string, error) {
	baseBytes, err := base58.Decode(baseMint)
	if err != nil {
		return "", fmt.Errorf("decode base mint: %w", err)
	}
	quoteBytes, err := base58.Decode(quoteMint)
	if err != nil {
		return "", fmt.Errorf("decode quote mint: %w", err)
	}
	addr, _, err := FindProgramAddress([][]byte{[]byte("pool"), baseBytes, quoteBytes}, program)
	return addr, err
}
