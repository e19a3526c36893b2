package txbuilder

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"

	"solsniper/internal/domain"
	"solsniper/internal/venue"
)

// Core program addresses referenced by swap instructions.
const (
	SystemProgram          = "11111111111111111111111111111111"
	TokenProgram           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenProgram = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
)

// Anchor instruction discriminators.
var (
	pumpBuyDiscriminator    = []byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}
	pumpSellDiscriminator   = []byte{0x33, 0xe6, 0x85, 0xa4, 0x01, 0x7f, 0x83, 0xad}
	launchBuyDiscriminator  = []byte{0xfa, 0xea, 0x0d, 0x7b, 0xd5, 0x9c, 0x13, 0xec}
	launchSellDiscriminator = []byte{0x95, 0x27, 0xde, 0x9b, 0xd3, 0x7c, 0x98, 0x1a}
	swapBaseInDiscriminator = []byte{0x8f, 0xbe, 0x5a, 0xda, 0xc4, 0x1e, 0x33, 0xde}
)

// AssociatedTokenAddress derives the canonical token account for owner/mint.
func AssociatedTokenAddress(owner, mint string) (string, error) {
	ownerRaw, err := base58.Decode(owner)
	if err != nil {
		return "", fmt.Errorf("decode owner: %w", err)
	}
	tokenProgRaw, err := base58.Decode(TokenProgram)
	if err != nil {
		return "", fmt.Errorf("decode token program: %w", err)
	}
	mintRaw, err := base58.Decode(mint)
	if err != nil {
		return "", fmt.Errorf("decode mint: %w", err)
	}
	addr, _, err := venue.FindProgramAddress(
		[][]byte{ownerRaw, tokenProgRaw, mintRaw}, AssociatedTokenProgram)
	return addr, err
}

func appendU64(data []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(data, b[:]...)
}

// curveBuyInstruction builds the pump.fun buy. The program's buy takes the
// token amount and a max cost, so the slippage bound maps to amount=MinOut
// with maxCost=AmountIn: the chain pays out at least MinOut or reverts.
func curveBuyInstruction(user string, q *domain.Quote) (Instruction, error) {
	userToken, err := AssociatedTokenAddress(user, q.Mint)
	if err != nil {
		return Instruction{}, err
	}
	curveToken, err := AssociatedTokenAddress(q.VenueState.PoolID, q.Mint)
	if err != nil {
		return Instruction{}, err
	}

	data := append([]byte{}, pumpBuyDiscriminator...)
	data = appendU64(data, q.MinOut)   // token amount
	data = appendU64(data, q.AmountIn) // max_sol_cost

	return Instruction{
		ProgramID: venue.PumpFun,
		Accounts: []AccountMeta{
			{Pubkey: q.Mint},
			{Pubkey: q.VenueState.PoolID, Writable: true},
			{Pubkey: curveToken, Writable: true},
			{Pubkey: userToken, Writable: true},
			{Pubkey: user, Signer: true, Writable: true},
			{Pubkey: SystemProgram},
			{Pubkey: TokenProgram},
		},
		Data: data,
	}, nil
}

// curveSellInstruction builds the pump.fun sell: amount in tokens plus the
// minimum lamport output enforced on-chain.
func curveSellInstruction(user string, q *domain.Quote) (Instruction, error) {
	userToken, err := AssociatedTokenAddress(user, q.Mint)
	if err != nil {
		return Instruction{}, err
	}
	curveToken, err := AssociatedTokenAddress(q.VenueState.PoolID, q.Mint)
	if err != nil {
		return Instruction{}, err
	}

	data := append([]byte{}, pumpSellDiscriminator...)
	data = appendU64(data, q.AmountIn) // token amount
	data = appendU64(data, q.MinOut)   // min_sol_output

	return Instruction{
		ProgramID: venue.PumpFun,
		Accounts: []AccountMeta{
			{Pubkey: q.Mint},
			{Pubkey: q.VenueState.PoolID, Writable: true},
			{Pubkey: curveToken, Writable: true},
			{Pubkey: userToken, Writable: true},
			{Pubkey: user, Signer: true, Writable: true},
			{Pubkey: SystemProgram},
			{Pubkey: TokenProgram},
		},
		Data: data,
	}, nil
}

// launchSwapInstruction builds the bonk.fun launchpad buy_exact_in or
// sell_exact_in. Both take an exact input, a minimum output enforced
// on-chain, and a share fee rate, which we always leave at zero.
func launchSwapInstruction(user string, q *domain.Quote) (Instruction, error) {
	userToken, err := AssociatedTokenAddress(user, q.Mint)
	if err != nil {
		return Instruction{}, err
	}
	userWSOL, err := AssociatedTokenAddress(user, venue.WSOLMint)
	if err != nil {
		return Instruction{}, err
	}
	baseVault, err := AssociatedTokenAddress(q.VenueState.PoolID, q.Mint)
	if err != nil {
		return Instruction{}, err
	}
	quoteVault, err := AssociatedTokenAddress(q.VenueState.PoolID, venue.WSOLMint)
	if err != nil {
		return Instruction{}, err
	}

	disc := launchBuyDiscriminator
	if q.Side == domain.SideSell {
		disc = launchSellDiscriminator
	}
	data := append([]byte{}, disc...)
	data = appendU64(data, q.AmountIn)
	data = appendU64(data, q.MinOut) // minimum_amount_out
	data = appendU64(data, 0)        // share_fee_rate

	return Instruction{
		ProgramID: venue.LaunchLab,
		Accounts: []AccountMeta{
			{Pubkey: user, Signer: true, Writable: true},
			{Pubkey: q.VenueState.PoolID, Writable: true},
			{Pubkey: userToken, Writable: true},
			{Pubkey: userWSOL, Writable: true},
			{Pubkey: baseVault, Writable: true},
			{Pubkey: quoteVault, Writable: true},
			{Pubkey: q.Mint},
			{Pubkey: venue.WSOLMint},
			{Pubkey: SystemProgram},
			{Pubkey: TokenProgram},
		},
		Data: data,
	}, nil
}

// poolSwapInstruction builds the AMM swap-base-in: exact input, minimum
// output enforced on-chain.
func poolSwapInstruction(user, program string, q *domain.Quote) (Instruction, error) {
	quoteMint := venue.WSOLMint
	if q.VenueState.Quote == domain.QuoteStable {
		quoteMint = venue.USD1Mint
	}

	inMint, outMint := quoteMint, q.Mint
	if q.Side == domain.SideSell {
		inMint, outMint = q.Mint, quoteMint
	}

	userIn, err := AssociatedTokenAddress(user, inMint)
	if err != nil {
		return Instruction{}, err
	}
	userOut, err := AssociatedTokenAddress(user, outMint)
	if err != nil {
		return Instruction{}, err
	}
	poolIn, err := AssociatedTokenAddress(q.VenueState.PoolID, inMint)
	if err != nil {
		return Instruction{}, err
	}
	poolOut, err := AssociatedTokenAddress(q.VenueState.PoolID, outMint)
	if err != nil {
		return Instruction{}, err
	}

	data := append([]byte{}, swapBaseInDiscriminator...)
	data = appendU64(data, q.AmountIn)
	data = appendU64(data, q.MinOut) // minimum_amount_out

	return Instruction{
		ProgramID: program,
		Accounts: []AccountMeta{
			{Pubkey: user, Signer: true, Writable: true},
			{Pubkey: q.VenueState.PoolID, Writable: true},
			{Pubkey: userIn, Writable: true},
			{Pubkey: userOut, Writable: true},
			{Pubkey: poolIn, Writable: true},
			{Pubkey: poolOut, Writable: true},
			{Pubkey: inMint},
			{Pubkey: outMint},
			{Pubkey: TokenProgram},
		},
		Data: data,
	}, nil
}

// swapInstruction dispatches on the venue kind and, for launchpad curves,
// on the owning program.
func swapInstruction(user string, q *domain.Quote) (Instruction, error) {
	switch q.VenueState.Venue {
	case domain.VenueBondingCurve:
		if q.VenueState.Program == venue.LaunchLab {
			return launchSwapInstruction(user, q)
		}
		if q.Side == domain.SideBuy {
			return curveBuyInstruction(user, q)
		}
		return curveSellInstruction(user, q)
	case domain.VenueAmmPool:
		return poolSwapInstruction(user, q.VenueState.Program, q)
	default:
		return Instruction{}, fmt.Errorf("unknown venue kind %q", q.VenueState.Venue)
	}
}
