package domain

// User is a bot user with a custodial wallet. SecretKey is the base58-encoded
// keypair as produced by the wallet package; key encryption at rest is the
// persistence collaborator's concern.
type User struct {
	TelegramID    int64
	Username      string
	WalletAddress string
	SecretKey     string
	CreatedAt     int64 // unix ms
}

// Settings are per-user trading preferences.
type Settings struct {
	TelegramID int64

	// SlippageTolerance is a fraction, e.g. 0.15 for 15%.
	SlippageTolerance float64
}

// DefaultSlippageTolerance matches the bot's default of 15%.
const DefaultSlippageTolerance = 0.15

// Position is a user's tracked holding of one token. Amount is in raw token
// units and is only ever moved by confirmed trades.
type Position struct {
	TelegramID int64
	Mint       string
	Amount     uint64
	UpdatedAt  int64 // unix ms
}

// TradeEvent is the analytics view of a confirmed trade, appended to the
// trade history store on finalization.
type TradeEvent struct {
	IdempotencyKey string
	TelegramID     int64
	Mint           string
	Side           Side
	Venue          VenueKind
	AmountIn       uint64
	AmountOut      uint64
	PriceImpact    float64
	Signature      string
	ExecutedAt     int64 // unix ms
}
