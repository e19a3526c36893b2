package venue

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// curveState is the decoded pump.fun bonding curve account.
// Layout: discriminator(8) | virtual_token_reserves(u64) |
// virtual_sol_reserves(u64) | real_token_reserves(u64) |
// real_sol_reserves(u64) | token_total_supply(u64) | complete(u8).
type curveState struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

const curveStateLen = 8 + 5*8 + 1

func parseCurveState(data string) (*curveState, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode curve account data: %w", err)
	}
	if len(raw) < curveStateLen {
		return nil, fmt.Errorf("curve account data too short: %d", len(raw))
	}

	return &curveState{
		VirtualTokenReserves: binary.LittleEndian.Uint64(raw[8:16]),
		VirtualSolReserves:   binary.LittleEndian.Uint64(raw[16:24]),
		RealTokenReserves:    binary.LittleEndian.Uint64(raw[24:32]),
		RealSolReserves:      binary.LittleEndian.Uint64(raw[32:40]),
		TokenTotalSupply:     binary.LittleEndian.Uint64(raw[40:48]),
		Complete:             raw[48] != 0,
	}, nil
}

// launchCurveState is the decoded LaunchLab launchpad pool account, the
// bonk.fun pre-migration venue.
// Layout: discriminator(8) | virtual_base(u64) | virtual_quote(u64) |
// real_base(u64) | real_quote(u64) | status(u8). Status zero means the
// curve is still trading; any other value means liquidity has moved on.
type launchCurveState struct {
	VirtualBase  uint64
	VirtualQuote uint64
	RealBase     uint64
	RealQuote    uint64
	Migrated     bool
}

const launchCurveStateLen = 8 + 4*8 + 1

func parseLaunchCurveState(data string) (*launchCurveState, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode launchpad account data: %w", err)
	}
	if len(raw) < launchCurveStateLen {
		return nil, fmt.Errorf("launchpad account data too short: %d", len(raw))
	}

	return &launchCurveState{
		VirtualBase:  binary.LittleEndian.Uint64(raw[8:16]),
		VirtualQuote: binary.LittleEndian.Uint64(raw[16:24]),
		RealBase:     binary.LittleEndian.Uint64(raw[24:32]),
		RealQuote:    binary.LittleEndian.Uint64(raw[32:40]),
		Migrated:     raw[40] != 0,
	}, nil
}

// poolState is the decoded AMM pool account.
// Layout: discriminator(8) | base_mint(32) | quote_mint(32) |
// base_vault(32) | quote_vault(32) | fee_bps(u16).
type poolState struct {
	BaseMint   string
	QuoteMint  string
	BaseVault  string
	QuoteVault string
	FeeBps     uint32
}

const poolStateLen = 8 + 4*32 + 2

func parsePoolState(data string) (*poolState, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode pool account data: %w", err)
	}
	if len(raw) < poolStateLen {
		return nil, fmt.Errorf("pool account data too short: %d", len(raw))
	}

	return &poolState{
		BaseMint:   base58.Encode(raw[8:40]),
		QuoteMint:  base58.Encode(raw[40:72]),
		BaseVault:  base58.Encode(raw[72:104]),
		QuoteVault: base58.Encode(raw[104:136]),
		FeeBps:     uint32(binary.LittleEndian.Uint16(raw[136:138])),
	}, nil
}

// parseTokenAccountAmount parses an SPL token account and returns its amount.
// Token account layout: mint(32) | owner(32) | amount(u64) | ...
func parseTokenAccountAmount(data string) (uint64, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return 0, fmt.Errorf("decode token account data: %w", err)
	}
	if len(raw) < 72 {
		return 0, fmt.Errorf("token account data too short: %d", len(raw))
	}
	return binary.LittleEndian.Uint64(raw[64:72]), nil
}
