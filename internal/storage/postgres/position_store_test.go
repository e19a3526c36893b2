package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"solsniper/internal/storage"
	"solsniper/internal/storage/postgres"
)

func TestPositionStoreDeltas(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewPositionStore(pool)

	require.NoError(t, store.ApplyDelta(ctx, 42, "mint", 1_000, 100))
	require.NoError(t, store.ApplyDelta(ctx, 42, "mint", -400, 200))

	pos, err := store.GetPosition(ctx, 42, "mint")
	require.NoError(t, err)
	require.Equal(t, uint64(600), pos.Amount)
	require.Equal(t, int64(200), pos.UpdatedAt)

	// Overdraw is rejected and leaves the position untouched.
	err = store.ApplyDelta(ctx, 42, "mint", -601, 300)
	require.ErrorIs(t, err, storage.ErrInvalidInput)

	pos, err = store.GetPosition(ctx, 42, "mint")
	require.NoError(t, err)
	require.Equal(t, uint64(600), pos.Amount)

	// A full exit closes the row.
	require.NoError(t, store.ApplyDelta(ctx, 42, "mint", -600, 400))
	_, err = store.GetPosition(ctx, 42, "mint")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPositionStoreList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewPositionStore(pool)

	for _, mint := range []string{"b", "a"} {
		require.NoError(t, store.ApplyDelta(ctx, 42, mint, 10, 100))
	}
	require.NoError(t, store.ApplyDelta(ctx, 7, "other", 10, 100))

	got, err := store.ListPositions(ctx, 42)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].Mint)
	require.Equal(t, "b", got[1].Mint)
}
