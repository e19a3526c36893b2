package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"solsniper/internal/domain"
	"solsniper/internal/storage"
	"solsniper/internal/storage/postgres"
)

func TestUserStoreRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewUserStore(pool)

	user := &domain.User{
		TelegramID:    42,
		Username:      "alice",
		WalletAddress: "addr",
		SecretKey:     "secret",
		CreatedAt:     1_700_000_000_000,
	}
	require.NoError(t, store.CreateUser(ctx, user))

	got, err := store.GetUser(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Username)
	require.Equal(t, "addr", got.WalletAddress)

	err = store.CreateUser(ctx, user)
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetUser(ctx, 7)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUserStoreSettings(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewUserStore(pool)

	require.NoError(t, store.CreateUser(ctx, &domain.User{
		TelegramID: 42, WalletAddress: "addr", SecretKey: "secret", CreatedAt: 1,
	}))

	_, err := store.GetSettings(ctx, 42)
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.UpsertSettings(ctx, &domain.Settings{TelegramID: 42, SlippageTolerance: 0.10}))
	require.NoError(t, store.UpsertSettings(ctx, &domain.Settings{TelegramID: 42, SlippageTolerance: 0.25}))

	got, err := store.GetSettings(ctx, 42)
	require.NoError(t, err)
	require.InDelta(t, 0.25, got.SlippageTolerance, 1e-9)
}
