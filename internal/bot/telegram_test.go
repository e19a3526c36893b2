package bot

import (
	"fmt"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"solsniper/internal/trade"
)

func TestHandleCallbackWithoutMessage(t *testing.T) {
	// Callbacks on messages older than 48h arrive with a nil Message.
	b := &Bot{}
	b.handleCallback(&tgbotapi.CallbackQuery{ID: "cb1", Data: "buy:mint:0.1"})
}

func TestSolToLamports(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "1", want: 1_000_000_000},
		{in: "0.1", want: 100_000_000},
		{in: "0.25", want: 250_000_000},
		{in: "5", want: 5_000_000_000},
		{in: "0.000000001", want: 1},
		{in: "0.0000000001", want: 0}, // below one lamport floors to zero
		{in: "0", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		got, err := solToLamports(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("solToLamports(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("solToLamports(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("solToLamports(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLamportsToSol(t *testing.T) {
	if got := lamportsToSol(1_000_000_000); got != "1.0000" {
		t.Errorf("lamportsToSol(1e9) = %q", got)
	}
	if got := lamportsToSol(250_000_000); got != "0.2500" {
		t.Errorf("lamportsToSol(2.5e8) = %q", got)
	}
}

func TestUserFacingStripsWrappedDetail(t *testing.T) {
	wrapped := fmt.Errorf("requote %s: %w", "somemint", trade.ErrSlippageExceeded)
	if got := userFacing(wrapped); got != trade.ErrSlippageExceeded.Error() {
		t.Errorf("userFacing = %q", got)
	}

	plain := fmt.Errorf("something else entirely")
	if got := userFacing(plain); got != plain.Error() {
		t.Errorf("userFacing = %q", got)
	}
}
