package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
	"github.com/happy2099/zap-mono-sub002/internal/storage"
)

func testUser(id string) *domain.User {
	return &domain.User{
		ID:     id,
		Name:   "alice",
		Wallet: "FollowerWallet1111111111111111111111111111",
		Policy: domain.UserPolicy{
			ScaleFactor: 0.1,
			SlippageBps: 100,
		},
		TrackedWallets: []string{"trader-1", "trader-2"},
		Active:         true,
		CreatedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestUserStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUserStore(pool)
	ctx := context.Background()

	u := testUser("user-1")
	require.NoError(t, store.Insert(ctx, u))

	got, err := store.GetByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)
	assert.Equal(t, u.Wallet, got.Wallet)
	assert.Equal(t, 0.1, got.Policy.ScaleFactor)
	assert.Equal(t, 100, got.Policy.SlippageBps)
	assert.Equal(t, []string{"trader-1", "trader-2"}, got.TrackedWallets)
	assert.True(t, got.Active)
	assert.WithinDuration(t, u.CreatedAt, got.CreatedAt, time.Second)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUserStore_Insert_Duplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUserStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testUser("user-1")))
	assert.ErrorIs(t, store.Insert(ctx, testUser("user-1")), storage.ErrDuplicateKey)
}

func TestUserStore_Insert_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUserStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)

	noWallet := testUser("user-1")
	noWallet.Wallet = ""
	assert.ErrorIs(t, store.Insert(ctx, noWallet), storage.ErrInvalidInput)
}

func TestUserStore_GetUserPolicy(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUserStore(pool)
	ctx := context.Background()

	u := testUser("user-1")
	u.Policy = domain.UserPolicy{ScaleFactor: 0.25, SlippageBps: 50}
	require.NoError(t, store.Insert(ctx, u))

	policy, err := store.GetUserPolicy(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0.25, policy.ScaleFactor)
	assert.Equal(t, 50, policy.SlippageBps)

	_, err = store.GetUserPolicy(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUserStore_GetPrimaryWallet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUserStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testUser("user-1")))

	wallet, err := store.GetPrimaryWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "FollowerWallet1111111111111111111111111111", wallet)

	_, err = store.GetPrimaryWallet(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUserStore_ListActive(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUserStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testUser("user-2")))
	require.NoError(t, store.Insert(ctx, testUser("user-1")))

	inactive := testUser("user-3")
	inactive.Active = false
	require.NoError(t, store.Insert(ctx, inactive))

	got, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "user-1", got[0].ID)
	assert.Equal(t, "user-2", got[1].ID)
}
