package venue

import (
	"context"
	"log"
	"strings"

	"solsniper/internal/solana"
)

// MigrationWatcher observes pump.fun program logs and fires a callback when
// a bonding curve completes. The callback receives the transaction signature;
// callers re-resolve the affected token rather than trusting log contents.
type MigrationWatcher struct {
	ws     *solana.WSClient
	logger *log.Logger
	onHint func(signature string)
}

// NewMigrationWatcher creates a watcher that invokes onHint for every
// transaction that looks like a curve migration.
func NewMigrationWatcher(ws *solana.WSClient, logger *log.Logger, onHint func(signature string)) *MigrationWatcher {
	return &MigrationWatcher{ws: ws, logger: logger, onHint: onHint}
}

// Run subscribes to pump.fun logs and blocks until ctx is canceled or the
// subscription channel closes.
func (w *MigrationWatcher) Run(ctx context.Context) error {
	ch, err := w.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{PumpFun}})
	if err != nil {
		return err
	}

	w.logger.Printf("watching %s for curve migrations", PumpFun)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case note, ok := <-ch:
			if !ok {
				return nil
			}
			if note.Err != nil {
				continue
			}
			if migrationLogs(note.Logs) {
				w.logger.Printf("migration hint: %s", note.Signature)
				w.onHint(note.Signature)
			}
		}
	}
}

// migrationLogs reports whether a log set looks like a curve completing and
// its liquidity moving to the AMM.
func migrationLogs(logs []string) bool {
	for _, line := range logs {
		if strings.Contains(line, "Instruction: Migrate") ||
			strings.Contains(line, "Instruction: Withdraw") {
			return true
		}
	}
	return false
}
