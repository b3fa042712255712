package memory

import (
	"context"
	"testing"
	"time"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
	"github.com/happy2099/zap-mono-sub002/internal/storage"
)

func record(id, signature string, state domain.TradeState, started time.Time) *domain.TradeRecord {
	return &domain.TradeRecord{
		ID:     id,
		UserID: "user-1",
		State:  state,
		Trade: &domain.ClassifiedTrade{
			Signature: signature,
			Venue:     domain.VenuePumpFun,
		},
		StartedAt: started,
	}
}

func TestTradeRecordStore_InsertDuplicate(t *testing.T) {
	s := NewTradeRecordStore()
	ctx := context.Background()

	r := record("t1", "sig-1", domain.TradeStatePending, time.Now())
	if err := s.Insert(ctx, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Insert(ctx, r); err != storage.ErrDuplicateKey {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeRecordStore_InsertActiveSignatureConflict(t *testing.T) {
	s := NewTradeRecordStore()
	ctx := context.Background()

	active := record("t1", "sig-1", domain.TradeStateExecuting, time.Now())
	if err := s.Insert(ctx, active); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A second non-terminal record for the same signature is rejected even
	// with a fresh id.
	if err := s.Insert(ctx, record("t2", "sig-1", domain.TradeStatePending, time.Now())); err != storage.ErrDuplicateKey {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	// Once the holder is terminal the signature frees up.
	active.State = domain.TradeStateFailed
	if err := s.Update(ctx, active); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Insert(ctx, record("t2", "sig-1", domain.TradeStatePending, time.Now())); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTradeRecordStore_InsertInvalid(t *testing.T) {
	s := NewTradeRecordStore()
	if err := s.Insert(context.Background(), nil); err != storage.ErrInvalidInput {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if err := s.Insert(context.Background(), &domain.TradeRecord{}); err != storage.ErrInvalidInput {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTradeRecordStore_UpdateMissing(t *testing.T) {
	s := NewTradeRecordStore()
	r := record("ghost", "sig-x", domain.TradeStatePending, time.Now())
	if err := s.Update(context.Background(), r); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTradeRecordStore_ValueIsolation(t *testing.T) {
	s := NewTradeRecordStore()
	ctx := context.Background()

	r := record("t1", "sig-1", domain.TradeStatePending, time.Now())
	if err := s.Insert(ctx, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Mutating the caller's copy must not affect the stored record.
	r.State = domain.TradeStateFailed
	r.Trade.Signature = "mutated"

	got, err := s.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != domain.TradeStatePending {
		t.Errorf("expected pending, got %s", got.State)
	}
	if got.Trade.Signature != "sig-1" {
		t.Errorf("expected sig-1, got %s", got.Trade.Signature)
	}
}

func TestTradeRecordStore_GetActiveBySignature(t *testing.T) {
	s := NewTradeRecordStore()
	ctx := context.Background()

	terminal := record("t1", "sig-done", domain.TradeStateCompleted, time.Now())
	active := record("t2", "sig-live", domain.TradeStateExecuting, time.Now())
	if err := s.Insert(ctx, terminal); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(ctx, active); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetActiveBySignature(ctx, "sig-done"); err != storage.ErrNotFound {
		t.Errorf("terminal record must not be active: %v", err)
	}

	got, err := s.GetActiveBySignature(ctx, "sig-live")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "t2" {
		t.Errorf("expected t2, got %s", got.ID)
	}
}

func TestTradeRecordStore_ListByState(t *testing.T) {
	s := NewTradeRecordStore()
	ctx := context.Background()

	base := time.Now()
	s.Insert(ctx, record("t1", "s1", domain.TradeStatePending, base.Add(2*time.Second)))
	s.Insert(ctx, record("t2", "s2", domain.TradeStatePending, base))
	s.Insert(ctx, record("t3", "s3", domain.TradeStateCompleted, base.Add(time.Second)))

	pending, err := s.ListByState(ctx, domain.TradeStatePending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	if pending[0].ID != "t2" {
		t.Errorf("expected oldest first, got %s", pending[0].ID)
	}
}

func TestTradeRecordStore_ListByUser(t *testing.T) {
	s := NewTradeRecordStore()
	ctx := context.Background()

	base := time.Now()
	older := record("t1", "s1", domain.TradeStateCompleted, base)
	newer := record("t2", "s2", domain.TradeStatePending, base.Add(time.Minute))
	other := record("t3", "s3", domain.TradeStatePending, base)
	other.UserID = "user-2"

	s.Insert(ctx, older)
	s.Insert(ctx, newer)
	s.Insert(ctx, other)

	got, err := s.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != "t2" {
		t.Errorf("expected newest first, got %s", got[0].ID)
	}
}
