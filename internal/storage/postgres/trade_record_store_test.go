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

func testTradeRecord(id, userID, sig string) *domain.TradeRecord {
	return &domain.TradeRecord{
		ID:     id,
		UserID: userID,
		Trade: &domain.ClassifiedTrade{
			SwapDetection: domain.SwapDetection{
				IsSwap:          true,
				Type:            domain.TradeTypeBuy,
				InputMint:       domain.WSOL,
				OutputMint:      "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
				InputAmountRaw:  1_000_000_000,
				OutputAmountRaw: 42_000_000,
				InputDecimals:   9,
				OutputDecimals:  6,
			},
			Venue:          domain.VenuePumpFun,
			VenueProgramID: domain.PumpFunProgramID,
			Trader:         "trader-1",
			Signature:      sig,
			Slot:           100,
			Confidence:     100,
		},
		State:     domain.TradeStatePending,
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestTradeRecordStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeRecordStore(pool)
	ctx := context.Background()

	rec := testTradeRecord("rec-1", "user-1", "sig-1")
	require.NoError(t, store.Insert(ctx, rec))

	got, err := store.GetByID(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, domain.TradeStatePending, got.State)
	assert.Equal(t, 0, got.Attempts)
	assert.WithinDuration(t, rec.StartedAt, got.StartedAt, time.Second)
	assert.True(t, got.EndedAt.IsZero())

	// Trade payload round-trips through JSONB
	require.NotNil(t, got.Trade)
	assert.Equal(t, "sig-1", got.Trade.Signature)
	assert.Equal(t, domain.VenuePumpFun, got.Trade.Venue)
	assert.Equal(t, uint64(1_000_000_000), got.Trade.InputAmountRaw)
	assert.Equal(t, 100, got.Trade.Confidence)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeRecordStore_Insert_DuplicateID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeRecordStore(pool)
	ctx := context.Background()

	rec := testTradeRecord("rec-1", "user-1", "sig-1")
	require.NoError(t, store.Insert(ctx, rec))

	dup := testTradeRecord("rec-1", "user-2", "sig-2")
	assert.ErrorIs(t, store.Insert(ctx, dup), storage.ErrDuplicateKey)
}

func TestTradeRecordStore_Insert_ActiveSignatureConflict(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeRecordStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testTradeRecord("rec-1", "user-1", "sig-1")))

	// Second non-terminal record for the same signature hits the partial
	// unique index.
	err := store.Insert(ctx, testTradeRecord("rec-2", "user-1", "sig-1"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Once the first record is terminal the signature frees up.
	rec, err := store.GetByID(ctx, "rec-1")
	require.NoError(t, err)
	rec.State = domain.TradeStateCompleted
	rec.EndedAt = time.Now().UTC()
	require.NoError(t, store.Update(ctx, rec))

	require.NoError(t, store.Insert(ctx, testTradeRecord("rec-2", "user-1", "sig-1")))
}

func TestTradeRecordStore_Update(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeRecordStore(pool)
	ctx := context.Background()

	rec := testTradeRecord("rec-1", "user-1", "sig-1")
	require.NoError(t, store.Insert(ctx, rec))

	rec.State = domain.TradeStateFailed
	rec.Attempts = 3
	rec.EndedAt = time.Now().UTC().Truncate(time.Millisecond)
	rec.ErrorCategory = domain.ErrorCategoryNetwork
	rec.ErrorMessage = "blockhash fetch timed out"
	require.NoError(t, store.Update(ctx, rec))

	got, err := store.GetByID(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStateFailed, got.State)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, domain.ErrorCategoryNetwork, got.ErrorCategory)
	assert.Equal(t, "blockhash fetch timed out", got.ErrorMessage)
	assert.WithinDuration(t, rec.EndedAt, got.EndedAt, time.Second)

	missing := testTradeRecord("missing", "user-1", "sig-2")
	assert.ErrorIs(t, store.Update(ctx, missing), storage.ErrNotFound)
}

func TestTradeRecordStore_Update_Completion(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeRecordStore(pool)
	ctx := context.Background()

	rec := testTradeRecord("rec-1", "user-1", "sig-1")
	require.NoError(t, store.Insert(ctx, rec))

	rec.State = domain.TradeStateCompleted
	rec.SubmittedSignature = "copied-sig"
	rec.ExecutionTime = 1500 * time.Millisecond
	rec.EndedAt = time.Now().UTC()
	require.NoError(t, store.Update(ctx, rec))

	got, err := store.GetByID(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "copied-sig", got.SubmittedSignature)
	assert.Equal(t, 1500*time.Millisecond, got.ExecutionTime)
}

func TestTradeRecordStore_GetActiveBySignature(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeRecordStore(pool)
	ctx := context.Background()

	rec := testTradeRecord("rec-1", "user-1", "sig-1")
	require.NoError(t, store.Insert(ctx, rec))

	got, err := store.GetActiveBySignature(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", got.ID)

	// Terminal records no longer count as active.
	rec.State = domain.TradeStateCancelled
	rec.EndedAt = time.Now().UTC()
	require.NoError(t, store.Update(ctx, rec))

	_, err = store.GetActiveBySignature(ctx, "sig-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeRecordStore_ListByUser(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeRecordStore(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"rec-1", "rec-2", "rec-3"} {
		rec := testTradeRecord(id, "user-1", "sig-"+id)
		rec.StartedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Insert(ctx, rec))
	}
	other := testTradeRecord("rec-4", "user-2", "sig-rec-4")
	require.NoError(t, store.Insert(ctx, other))

	got, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first
	assert.Equal(t, "rec-3", got[0].ID)
	assert.Equal(t, "rec-1", got[2].ID)

	got, err = store.ListByUser(ctx, "user-9")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTradeRecordStore_ListByState(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeRecordStore(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	pending := testTradeRecord("rec-1", "user-1", "sig-1")
	pending.StartedAt = base.Add(time.Minute)
	require.NoError(t, store.Insert(ctx, pending))

	older := testTradeRecord("rec-2", "user-1", "sig-2")
	older.StartedAt = base
	require.NoError(t, store.Insert(ctx, older))

	done := testTradeRecord("rec-3", "user-1", "sig-3")
	done.State = domain.TradeStateCompleted
	done.EndedAt = base.Add(2 * time.Minute)
	require.NoError(t, store.Insert(ctx, done))

	got, err := store.ListByState(ctx, domain.TradeStatePending)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Oldest first
	assert.Equal(t, "rec-2", got[0].ID)
	assert.Equal(t, "rec-1", got[1].ID)
}

func TestTradeRecordStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeRecordStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.TradeRecord{ID: "rec-1"}), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Update(ctx, &domain.TradeRecord{}), storage.ErrInvalidInput)
}
