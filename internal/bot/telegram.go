// Package bot is the Telegram front end: custodial wallets, one-tap buy
// presets, percentage sells, and per-user slippage settings. Every button
// press mints a fresh idempotency key, so a retried Telegram update can
// never double-execute a trade.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"solsniper/internal/domain"
	"solsniper/internal/solana"
	"solsniper/internal/storage"
	"solsniper/internal/trade"
	"solsniper/internal/wallet"
)

const lamportsPerSol = 1_000_000_000

// buyPresets are the one-tap buy sizes, in SOL.
var buyPresets = []string{"0.1", "0.25", "0.5", "1", "2", "5"}

// sellPresets are the one-tap sell sizes, in percent of the held balance.
var sellPresets = []float64{25, 50, 75, 100}

// slippagePresets are the selectable tolerance settings.
var slippagePresets = []float64{0.05, 0.10, 0.15, 0.25}

// Bot handles Telegram interactions for the trading engine.
type Bot struct {
	api       *tgbotapi.BotAPI
	engine    *trade.Engine
	users     storage.UserStore
	positions storage.PositionStore
	events    storage.TradeEventStore
	chain     solana.ChainReader
	logger    *log.Logger
	stopCh    chan struct{}
}

// New connects to the Telegram API and wires the bot to the trading engine.
func New(token string, engine *trade.Engine, users storage.UserStore, positions storage.PositionStore, events storage.TradeEventStore, chain solana.ChainReader, logger *log.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	logger.Printf("telegram bot connected as @%s", api.Self.UserName)

	return &Bot{
		api:       api,
		engine:    engine,
		users:     users,
		positions: positions,
		events:    events,
		chain:     chain,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start begins the bot's update listener.
func (b *Bot) Start() {
	go b.listen()
}

// Stop stops the bot.
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
	close(b.stopCh)
}

func (b *Bot) listen() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				go b.handleMessage(update.Message)
			}
			if update.CallbackQuery != nil {
				go b.handleCallback(update.CallbackQuery)
			}
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	ctx := context.Background()
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.cmdStart(ctx, msg)
		case "help":
			b.cmdHelp(chatID)
		case "wallet":
			b.cmdWallet(ctx, chatID)
		case "positions":
			b.cmdPositions(ctx, chatID)
		case "history":
			b.cmdHistory(ctx, chatID)
		case "settings":
			b.cmdSettings(ctx, chatID)
		case "buy":
			b.cmdBuy(ctx, chatID, msg.CommandArguments())
		case "sell":
			b.cmdSell(ctx, chatID, msg.CommandArguments())
		default:
			b.sendText(chatID, "Unknown command. Use /help.")
		}
		return
	}

	// A bare message that looks like a mint address opens the trade panel.
	text := strings.TrimSpace(msg.Text)
	if wallet.ValidateAddress(text) == nil {
		b.showTokenPanel(ctx, chatID, text)
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	// Telegram omits Message on callbacks against messages older than 48h.
	if cb.Message == nil {
		return
	}

	ctx := context.Background()
	chatID := cb.Message.Chat.ID

	b.api.Request(tgbotapi.NewCallback(cb.ID, ""))

	parts := strings.Split(cb.Data, ":")
	switch parts[0] {
	case "buy":
		if len(parts) != 3 {
			return
		}
		amount, err := solToLamports(parts[2])
		if err != nil {
			b.sendText(chatID, "Bad amount: "+err.Error())
			return
		}
		b.executeBuy(ctx, chatID, parts[1], amount)
	case "sell":
		if len(parts) != 3 {
			return
		}
		pct, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return
		}
		b.executeSell(ctx, chatID, parts[1], pct)
	case "slip":
		if len(parts) != 2 {
			return
		}
		tol, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return
		}
		b.setSlippage(ctx, chatID, tol)
	case "refresh":
		if len(parts) == 2 {
			b.showTokenPanel(ctx, chatID, parts[1])
		}
	}
}

// Commands

func (b *Bot) cmdStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	user, err := b.users.GetUser(ctx, chatID)
	if errors.Is(err, storage.ErrNotFound) {
		kp, genErr := wallet.Generate()
		if genErr != nil {
			b.sendText(chatID, "Wallet generation failed, try again.")
			return
		}
		user = &domain.User{
			TelegramID:    chatID,
			Username:      msg.From.UserName,
			WalletAddress: kp.PublicKey(),
			SecretKey:     kp.SecretKey(),
		}
		if err := b.users.CreateUser(ctx, user); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			b.logger.Printf("create user %d: %v", chatID, err)
			b.sendText(chatID, "Could not create your wallet, try again.")
			return
		}
	} else if err != nil {
		b.logger.Printf("get user %d: %v", chatID, err)
		b.sendText(chatID, "Something went wrong, try again.")
		return
	}

	text := fmt.Sprintf(`*Welcome to solsniper*

Your trading wallet:
`+"`%s`"+`

Deposit SOL to this address to start trading.

Paste any token mint address to open the trade panel, or use:
/wallet - wallet address and balance
/positions - open positions
/settings - slippage tolerance
/help - all commands`, user.WalletAddress)

	b.sendMarkdown(chatID, text)
}

func (b *Bot) cmdHelp(chatID int64) {
	b.sendMarkdown(chatID, `*Commands*

Paste a token mint address to open the trade panel.

/buy <mint> <sol> - buy with an exact SOL amount
/sell <mint> <percent> - sell a share of your balance
/wallet - wallet address and SOL balance
/positions - open positions
/history - recent trades
/settings - slippage tolerance`)
}

func (b *Bot) cmdWallet(ctx context.Context, chatID int64) {
	user, err := b.users.GetUser(ctx, chatID)
	if err != nil {
		b.sendText(chatID, "No wallet yet. Use /start first.")
		return
	}

	balance, err := b.chain.GetBalance(ctx, user.WalletAddress)
	if err != nil {
		b.logger.Printf("balance for %d: %v", chatID, err)
	}

	text := fmt.Sprintf(`*Wallet*

`+"`%s`"+`

Balance: %s SOL`, user.WalletAddress, lamportsToSol(balance))
	b.sendMarkdown(chatID, text)
}

func (b *Bot) cmdPositions(ctx context.Context, chatID int64) {
	positions, err := b.positions.ListPositions(ctx, chatID)
	if err != nil {
		b.logger.Printf("positions for %d: %v", chatID, err)
		b.sendText(chatID, "Could not load positions.")
		return
	}
	if len(positions) == 0 {
		b.sendText(chatID, "No open positions.")
		return
	}

	var sb strings.Builder
	sb.WriteString("*Open positions*\n")
	for _, p := range positions {
		fmt.Fprintf(&sb, "\n`%s`\n%d tokens\n", p.Mint, p.Amount)
	}
	sb.WriteString("\nPaste a mint address to trade it.")
	b.sendMarkdown(chatID, sb.String())
}

func (b *Bot) cmdHistory(ctx context.Context, chatID int64) {
	events, err := b.events.ListByUser(ctx, chatID, 10)
	if err != nil {
		b.logger.Printf("history for %d: %v", chatID, err)
		b.sendText(chatID, "Could not load history.")
		return
	}
	if len(events) == 0 {
		b.sendText(chatID, "No trades yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("*Recent trades*\n")
	for _, e := range events {
		if e.Side == domain.SideBuy {
			fmt.Fprintf(&sb, "\nBUY %s SOL -> %d tokens\n`%s`\n", lamportsToSol(e.AmountIn), e.AmountOut, e.Mint)
		} else {
			fmt.Fprintf(&sb, "\nSELL %d tokens -> %s SOL\n`%s`\n", e.AmountIn, lamportsToSol(e.AmountOut), e.Mint)
		}
	}
	b.sendMarkdown(chatID, sb.String())
}

func (b *Bot) cmdSettings(ctx context.Context, chatID int64) {
	tol := b.slippageFor(ctx, chatID)

	var rows []tgbotapi.InlineKeyboardButton
	for _, p := range slippagePresets {
		label := fmt.Sprintf("%.0f%%", p*100)
		if p == tol {
			label = "· " + label + " ·"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("slip:%g", p)))
	}

	text := fmt.Sprintf(`*Settings*

Slippage tolerance: %.0f%%

Trades are rejected, never widened, when the market moves past this bound.`, tol*100)

	b.sendMarkdownWithKeyboard(chatID, text, tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(rows...),
	))
}

func (b *Bot) cmdBuy(ctx context.Context, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.sendText(chatID, "Usage: /buy <mint> <sol amount>")
		return
	}
	amount, err := solToLamports(fields[1])
	if err != nil {
		b.sendText(chatID, "Bad amount: "+err.Error())
		return
	}
	b.executeBuy(ctx, chatID, fields[0], amount)
}

func (b *Bot) cmdSell(ctx context.Context, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.sendText(chatID, "Usage: /sell <mint> <percent>")
		return
	}
	pct, err := strconv.ParseFloat(strings.TrimSuffix(fields[1], "%"), 64)
	if err != nil || pct <= 0 || pct > 100 {
		b.sendText(chatID, "Percent must be in (0, 100].")
		return
	}
	b.executeSell(ctx, chatID, fields[0], pct)
}

// Trade panel

func (b *Bot) showTokenPanel(ctx context.Context, chatID int64, mint string) {
	state, err := b.engine.Resolve(ctx, mint)
	if err != nil {
		b.sendText(chatID, "Token not found on any supported venue.")
		return
	}

	venueLabel := "bonding curve"
	if state.Venue == domain.VenueAmmPool {
		venueLabel = "AMM pool"
		if state.Quote == domain.QuoteStable {
			venueLabel = "AMM pool (USD1)"
		}
	}

	var buyRow []tgbotapi.InlineKeyboardButton
	for _, p := range buyPresets {
		buyRow = append(buyRow, tgbotapi.NewInlineKeyboardButtonData(p+" SOL", fmt.Sprintf("buy:%s:%s", mint, p)))
	}
	var sellRow []tgbotapi.InlineKeyboardButton
	for _, p := range sellPresets {
		sellRow = append(sellRow, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Sell %.0f%%", p), fmt.Sprintf("sell:%s:%g", mint, p)))
	}

	text := fmt.Sprintf(`*Token*
`+"`%s`"+`

Venue: %s
Fee: %.2f%%`, mint, venueLabel, float64(state.FeeBps)/100)

	if pos, err := b.positions.GetPosition(ctx, chatID, mint); err == nil {
		text += fmt.Sprintf("\nYour position: %d tokens", pos.Amount)
	}

	b.sendMarkdownWithKeyboard(chatID, text, tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(buyRow[:3]...),
		tgbotapi.NewInlineKeyboardRow(buyRow[3:]...),
		tgbotapi.NewInlineKeyboardRow(sellRow...),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Refresh", "refresh:"+mint),
		),
	))
}

// Execution

func (b *Bot) executeBuy(ctx context.Context, chatID int64, mint string, lamports uint64) {
	req := &domain.TradeRequest{
		UserID:            chatID,
		Mint:              mint,
		Side:              domain.SideBuy,
		AmountIn:          lamports,
		SlippageTolerance: b.slippageFor(ctx, chatID),
		IdempotencyKey:    uuid.NewString(),
	}
	b.execute(ctx, chatID, req)
}

func (b *Bot) executeSell(ctx context.Context, chatID int64, mint string, pct float64) {
	req := &domain.TradeRequest{
		UserID:            chatID,
		Mint:              mint,
		Side:              domain.SideSell,
		SellPercent:       pct,
		SlippageTolerance: b.slippageFor(ctx, chatID),
		IdempotencyKey:    uuid.NewString(),
	}
	b.execute(ctx, chatID, req)
}

func (b *Bot) execute(ctx context.Context, chatID int64, req *domain.TradeRequest) {
	q, err := b.engine.Quote(ctx, req)
	if err != nil {
		b.sendText(chatID, "Quote failed: "+userFacing(err))
		return
	}

	record, err := b.engine.EnforceAndExecute(ctx, req, q)
	if err != nil {
		b.sendText(chatID, "Trade failed: "+userFacing(err))
		return
	}

	switch record.Status {
	case domain.StatusConfirmed:
		if req.Side == domain.SideBuy {
			b.sendMarkdown(chatID, fmt.Sprintf(
				"*Buy confirmed*\n\nSpent %s SOL for %d tokens.\n[View on Solscan](%s)",
				lamportsToSol(record.AmountIn), record.RealizedOut, solscanURL(record.Signature)))
		} else {
			b.sendMarkdown(chatID, fmt.Sprintf(
				"*Sell confirmed*\n\nSold %d tokens for %s SOL.\n[View on Solscan](%s)",
				record.AmountIn, lamportsToSol(record.RealizedOut), solscanURL(record.Signature)))
		}
	case domain.StatusRejected:
		b.sendText(chatID, "Trade rejected: "+record.FailureReason)
	case domain.StatusIndeterminate:
		b.sendMarkdown(chatID, fmt.Sprintf(
			"*Outcome unknown*\n\nThe network did not confirm in time. Your trade was *not* retried; it will settle automatically once the chain answers.\nSignature: `%s`",
			record.Signature))
	}
}

// Settings

func (b *Bot) slippageFor(ctx context.Context, chatID int64) float64 {
	settings, err := b.users.GetSettings(ctx, chatID)
	if err != nil || settings.SlippageTolerance <= 0 {
		return domain.DefaultSlippageTolerance
	}
	return settings.SlippageTolerance
}

func (b *Bot) setSlippage(ctx context.Context, chatID int64, tol float64) {
	if err := b.users.UpsertSettings(ctx, &domain.Settings{
		TelegramID:        chatID,
		SlippageTolerance: tol,
	}); err != nil {
		b.logger.Printf("save settings for %d: %v", chatID, err)
		b.sendText(chatID, "Could not save settings.")
		return
	}
	b.sendText(chatID, fmt.Sprintf("Slippage tolerance set to %.0f%%.", tol*100))
}

// Helpers

// userFacing strips wrapped detail down to the sentinel message where one
// applies, so users see "slippage exceeded" rather than internal context.
func userFacing(err error) string {
	for _, sentinel := range []error{
		trade.ErrTokenNotFound,
		trade.ErrInsufficientLiquidity,
		trade.ErrStaleVenueState,
		trade.ErrAmountTooSmall,
		trade.ErrInvalidTolerance,
		trade.ErrSlippageExceeded,
		trade.ErrQuoteExpired,
		// The more specific duplicate comes first: it wraps the plain one.
		trade.ErrReconciliationRequired,
		trade.ErrDuplicateRequest,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func solToLamports(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount: %w", err)
	}
	if d.IsNegative() || d.IsZero() {
		return 0, fmt.Errorf("amount must be positive")
	}
	lamports := d.Mul(decimal.NewFromInt(lamportsPerSol))
	if !lamports.IsInteger() {
		lamports = lamports.Floor()
	}
	if !lamports.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount too large")
	}
	return lamports.BigInt().Uint64(), nil
}

func solscanURL(signature string) string {
	return "https://solscan.io/tx/" + signature
}

func lamportsToSol(lamports uint64) string {
	return decimal.NewFromUint64(lamports).
		Div(decimal.NewFromInt(lamportsPerSol)).
		StringFixed(4)
}

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Printf("send to %d: %v", chatID, err)
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Printf("send to %d: %v", chatID, err)
	}
}

func (b *Bot) sendMarkdownWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = keyboard
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Printf("send to %d: %v", chatID, err)
	}
}
