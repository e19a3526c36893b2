package memory

import (
	"context"
	"errors"
	"testing"

	"solsniper/internal/domain"
	"solsniper/internal/storage"
)

func TestUserCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore()

	user := &domain.User{TelegramID: 42, Username: "alice", WalletAddress: "addr", SecretKey: "key"}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Username != "alice" || got.WalletAddress != "addr" {
		t.Fatalf("got %+v", got)
	}
}

func TestUserDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore()

	if err := store.CreateUser(ctx, &domain.User{TelegramID: 42}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.CreateUser(ctx, &domain.User{TelegramID: 42})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestSettingsUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore()

	if _, err := store.GetSettings(ctx, 42); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound before upsert", err)
	}

	if err := store.UpsertSettings(ctx, &domain.Settings{TelegramID: 42, SlippageTolerance: 0.10}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.UpsertSettings(ctx, &domain.Settings{TelegramID: 42, SlippageTolerance: 0.25}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := store.GetSettings(ctx, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SlippageTolerance != 0.25 {
		t.Fatalf("tolerance = %f, want 0.25", got.SlippageTolerance)
	}
}
