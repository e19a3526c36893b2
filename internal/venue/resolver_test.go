package venue

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"solsniper/internal/domain"
	"solsniper/internal/solana"
)

type fakeReader struct {
	accounts map[string]*solana.AccountInfo
}

func (f *fakeReader) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	return f.accounts[pubkey], nil
}

func (f *fakeReader) GetBalance(context.Context, string) (uint64, error) {
	return 0, nil
}

func (f *fakeReader) GetTokenBalance(context.Context, string, string) (uint64, error) {
	return 0, nil
}

func (f *fakeReader) GetLatestBlockhash(context.Context) (string, error) {
	return "", nil
}

func testMint(b byte) string {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = b
	}
	return base58.Encode(raw)
}

func encodeCurve(virtualToken, virtualSol uint64, complete bool) string {
	raw := make([]byte, curveStateLen)
	binary.LittleEndian.PutUint64(raw[8:16], virtualToken)
	binary.LittleEndian.PutUint64(raw[16:24], virtualSol)
	if complete {
		raw[48] = 1
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func encodeLaunchCurve(virtualBase, virtualQuote uint64, migrated bool) string {
	raw := make([]byte, launchCurveStateLen)
	binary.LittleEndian.PutUint64(raw[8:16], virtualBase)
	binary.LittleEndian.PutUint64(raw[16:24], virtualQuote)
	if migrated {
		raw[40] = 1
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func encodePool(baseMint, quoteMint, baseVault, quoteVault string, feeBps uint16) string {
	raw := make([]byte, poolStateLen)
	mustDecodeInto(raw[8:40], baseMint)
	mustDecodeInto(raw[40:72], quoteMint)
	mustDecodeInto(raw[72:104], baseVault)
	mustDecodeInto(raw[104:136], quoteVault)
	binary.LittleEndian.PutUint16(raw[136:138], feeBps)
	return base64.StdEncoding.EncodeToString(raw)
}

func mustDecodeInto(dst []byte, addr string) {
	raw, err := base58.Decode(addr)
	if err != nil {
		panic(err)
	}
	copy(dst, raw)
}

func encodeTokenAccount(amount uint64) string {
	raw := make([]byte, 72)
	binary.LittleEndian.PutUint64(raw[64:72], amount)
	return base64.StdEncoding.EncodeToString(raw)
}

func newTestResolver(reader solana.ChainReader) *Resolver {
	r := NewResolver(reader)
	r.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return r
}

func TestResolveBondingCurve(t *testing.T) {
	mint := testMint(1)
	curveAddr, err := BondingCurveAddress(mint)
	if err != nil {
		t.Fatalf("derive curve address: %v", err)
	}

	reader := &fakeReader{accounts: map[string]*solana.AccountInfo{
		curveAddr: {Owner: PumpFun, Data: encodeCurve(1_000_000, 30, false)},
	}}

	state, err := newTestResolver(reader).Resolve(context.Background(), mint)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if state.Venue != domain.VenueBondingCurve {
		t.Fatalf("venue = %s, want bonding curve", state.Venue)
	}
	if state.Quote != domain.QuoteNative {
		t.Fatalf("quote = %s, want native", state.Quote)
	}
	if state.BaseReserve != 1_000_000 || state.QuoteReserve != 30 {
		t.Fatalf("reserves = %d/%d, want 1000000/30", state.BaseReserve, state.QuoteReserve)
	}
	if state.FeeBps != BondingCurveFeeBps {
		t.Fatalf("fee = %d, want %d", state.FeeBps, BondingCurveFeeBps)
	}
	if err := state.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestResolveMigratedCurveFallsThroughToPool(t *testing.T) {
	mint := testMint(2)
	curveAddr, err := BondingCurveAddress(mint)
	if err != nil {
		t.Fatalf("derive curve address: %v", err)
	}
	poolAddr, err := PoolAddress(PumpSwap, mint, WSOLMint)
	if err != nil {
		t.Fatalf("derive pool address: %v", err)
	}

	baseVault := testMint(3)
	quoteVault := testMint(4)

	reader := &fakeReader{accounts: map[string]*solana.AccountInfo{
		curveAddr:  {Owner: PumpFun, Data: encodeCurve(0, 0, true)},
		poolAddr:   {Owner: PumpSwap, Data: encodePool(mint, WSOLMint, baseVault, quoteVault, 30)},
		baseVault:  {Data: encodeTokenAccount(10_000)},
		quoteVault: {Data: encodeTokenAccount(500)},
	}}

	state, err := newTestResolver(reader).Resolve(context.Background(), mint)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if state.Venue != domain.VenueAmmPool {
		t.Fatalf("venue = %s, want amm pool", state.Venue)
	}
	if state.PoolID != poolAddr {
		t.Fatalf("pool id = %s, want %s", state.PoolID, poolAddr)
	}
	if state.BaseReserve != 10_000 || state.QuoteReserve != 500 {
		t.Fatalf("reserves = %d/%d, want 10000/500", state.BaseReserve, state.QuoteReserve)
	}
}

func TestResolveLaunchpadCurve(t *testing.T) {
	mint := testMint(11)
	launchAddr, err := LaunchCurveAddress(mint)
	if err != nil {
		t.Fatalf("derive launchpad address: %v", err)
	}

	reader := &fakeReader{accounts: map[string]*solana.AccountInfo{
		launchAddr: {Owner: LaunchLab, Data: encodeLaunchCurve(2_000_000, 85, false)},
	}}

	state, err := newTestResolver(reader).Resolve(context.Background(), mint)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if state.Venue != domain.VenueBondingCurve {
		t.Fatalf("venue = %s, want bonding curve", state.Venue)
	}
	if state.Program != LaunchLab {
		t.Fatalf("program = %s, want %s", state.Program, LaunchLab)
	}
	if state.Quote != domain.QuoteNative {
		t.Fatalf("quote = %s, want native", state.Quote)
	}
	if state.BaseReserve != 2_000_000 || state.QuoteReserve != 85 {
		t.Fatalf("reserves = %d/%d, want 2000000/85", state.BaseReserve, state.QuoteReserve)
	}
	if state.FeeBps != BondingCurveFeeBps {
		t.Fatalf("fee = %d, want %d", state.FeeBps, BondingCurveFeeBps)
	}
	if err := state.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestResolveMigratedLaunchpadCurveFallsThroughToPool(t *testing.T) {
	mint := testMint(12)
	launchAddr, err := LaunchCurveAddress(mint)
	if err != nil {
		t.Fatalf("derive launchpad address: %v", err)
	}
	poolAddr, err := PoolAddress(RaydiumCPMM, mint, WSOLMint)
	if err != nil {
		t.Fatalf("derive pool address: %v", err)
	}

	baseVault := testMint(13)
	quoteVault := testMint(14)

	reader := &fakeReader{accounts: map[string]*solana.AccountInfo{
		launchAddr: {Owner: LaunchLab, Data: encodeLaunchCurve(0, 0, true)},
		poolAddr:   {Owner: RaydiumCPMM, Data: encodePool(mint, WSOLMint, baseVault, quoteVault, 30)},
		baseVault:  {Data: encodeTokenAccount(25_000)},
		quoteVault: {Data: encodeTokenAccount(800)},
	}}

	state, err := newTestResolver(reader).Resolve(context.Background(), mint)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if state.Venue != domain.VenueAmmPool {
		t.Fatalf("venue = %s, want amm pool", state.Venue)
	}
	if state.Program != RaydiumCPMM {
		t.Fatalf("program = %s, want %s", state.Program, RaydiumCPMM)
	}
	if state.BaseReserve != 25_000 || state.QuoteReserve != 800 {
		t.Fatalf("reserves = %d/%d, want 25000/800", state.BaseReserve, state.QuoteReserve)
	}
}

func TestResolvePrefersDeeperQuoteReserve(t *testing.T) {
	mint := testMint(5)
	nativeAddr, err := PoolAddress(RaydiumCPMM, mint, WSOLMint)
	if err != nil {
		t.Fatalf("derive native pool: %v", err)
	}
	stableAddr, err := PoolAddress(RaydiumCPMM, mint, USD1Mint)
	if err != nil {
		t.Fatalf("derive stable pool: %v", err)
	}

	nativeBase, nativeQuote := testMint(6), testMint(7)
	stableBase, stableQuote := testMint(8), testMint(9)

	reader := &fakeReader{accounts: map[string]*solana.AccountInfo{
		nativeAddr:  {Owner: RaydiumCPMM, Data: encodePool(mint, WSOLMint, nativeBase, nativeQuote, 30)},
		stableAddr:  {Owner: RaydiumCPMM, Data: encodePool(mint, USD1Mint, stableBase, stableQuote, 30)},
		nativeBase:  {Data: encodeTokenAccount(1_000)},
		nativeQuote: {Data: encodeTokenAccount(100)},
		stableBase:  {Data: encodeTokenAccount(1_000)},
		stableQuote: {Data: encodeTokenAccount(5_000)},
	}}

	state, err := newTestResolver(reader).Resolve(context.Background(), mint)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if state.Quote != domain.QuoteStable {
		t.Fatalf("quote = %s, want stable (deeper reserve)", state.Quote)
	}
	if state.PoolID != stableAddr {
		t.Fatalf("pool id = %s, want %s", state.PoolID, stableAddr)
	}
}

func TestResolveUnknownToken(t *testing.T) {
	reader := &fakeReader{accounts: map[string]*solana.AccountInfo{}}

	_, err := newTestResolver(reader).Resolve(context.Background(), testMint(10))
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("err = %v, want ErrTokenNotFound", err)
	}
}

func TestFindProgramAddressDeterministic(t *testing.T) {
	seeds := [][]byte{[]byte("bonding-curve"), make([]byte, 32)}

	a1, bump1, err := FindProgramAddress(seeds, PumpFun)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	a2, bump2, err := FindProgramAddress(seeds, PumpFun)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a1 != a2 || bump1 != bump2 {
		t.Fatalf("derivation not deterministic: %s/%d vs %s/%d", a1, bump1, a2, bump2)
	}

	raw, err := base58.Decode(a1)
	if err != nil || len(raw) != 32 {
		t.Fatalf("derived address malformed: %v, len %d", err, len(raw))
	}
}
