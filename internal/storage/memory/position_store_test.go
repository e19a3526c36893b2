package memory

import (
	"context"
	"errors"
	"testing"

	"solsniper/internal/storage"
)

func TestPositionApplyDelta(t *testing.T) {
	ctx := context.Background()
	store := NewPositionStore()

	if err := store.ApplyDelta(ctx, 42, "mint", 1_000, 100); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if err := store.ApplyDelta(ctx, 42, "mint", -400, 200); err != nil {
		t.Fatalf("partial sell: %v", err)
	}

	pos, err := store.GetPosition(ctx, 42, "mint")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pos.Amount != 600 {
		t.Fatalf("amount = %d, want 600", pos.Amount)
	}
	if pos.UpdatedAt != 200 {
		t.Fatalf("updated at = %d, want 200", pos.UpdatedAt)
	}
}

func TestPositionCannotGoNegative(t *testing.T) {
	ctx := context.Background()
	store := NewPositionStore()

	if err := store.ApplyDelta(ctx, 42, "mint", 100, 100); err != nil {
		t.Fatalf("buy: %v", err)
	}
	err := store.ApplyDelta(ctx, 42, "mint", -101, 200)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}

	// The failed delta must not have moved the position.
	pos, err := store.GetPosition(ctx, 42, "mint")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pos.Amount != 100 {
		t.Fatalf("amount = %d, want 100", pos.Amount)
	}
}

func TestPositionClosesAtZero(t *testing.T) {
	ctx := context.Background()
	store := NewPositionStore()

	if err := store.ApplyDelta(ctx, 42, "mint", 100, 100); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if err := store.ApplyDelta(ctx, 42, "mint", -100, 200); err != nil {
		t.Fatalf("full sell: %v", err)
	}

	if _, err := store.GetPosition(ctx, 42, "mint"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after full exit", err)
	}
}

func TestPositionList(t *testing.T) {
	ctx := context.Background()
	store := NewPositionStore()

	for _, mint := range []string{"b", "a", "c"} {
		if err := store.ApplyDelta(ctx, 42, mint, 10, 100); err != nil {
			t.Fatalf("buy %s: %v", mint, err)
		}
	}
	if err := store.ApplyDelta(ctx, 7, "other", 10, 100); err != nil {
		t.Fatalf("buy for other user: %v", err)
	}

	got, err := store.ListPositions(ctx, 42)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 || got[0].Mint != "a" || got[2].Mint != "c" {
		t.Fatalf("got %d positions, want a,b,c", len(got))
	}
}
