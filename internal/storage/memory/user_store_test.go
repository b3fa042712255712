package memory

import (
	"context"
	"testing"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
	"github.com/happy2099/zap-mono-sub002/internal/storage"
)

func user(id string, active bool) *domain.User {
	return &domain.User{
		ID:     id,
		Name:   "follower " + id,
		Wallet: "Wallet" + id,
		Policy: domain.UserPolicy{
			ScaleFactor: 0.1,
			SlippageBps: 150,
		},
		TrackedWallets: []string{"TraderA", "TraderB"},
		Active:         active,
	}
}

func TestUserStore_InsertAndGet(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()

	if err := s.Insert(ctx, user("u1", true)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Insert(ctx, user("u1", true)); err != storage.ErrDuplicateKey {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	got, err := s.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Wallet != "Walletu1" {
		t.Errorf("unexpected wallet %s", got.Wallet)
	}
}

func TestUserStore_PolicyAndWallet(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	s.Insert(ctx, user("u1", true))

	policy, err := s.GetUserPolicy(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if policy.ScaleFactor != 0.1 || policy.SlippageBps != 150 {
		t.Errorf("unexpected policy %+v", policy)
	}

	wallet, err := s.GetPrimaryWallet(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wallet != "Walletu1" {
		t.Errorf("unexpected wallet %s", wallet)
	}

	if _, err := s.GetUserPolicy(ctx, "ghost"); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUserStore_ListActive(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	s.Insert(ctx, user("u2", true))
	s.Insert(ctx, user("u1", true))
	s.Insert(ctx, user("u3", false))

	active, err := s.ListActive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active users, got %d", len(active))
	}
	if active[0].ID != "u1" || active[1].ID != "u2" {
		t.Errorf("expected ordered ids, got %s %s", active[0].ID, active[1].ID)
	}
}

func TestUserStore_ValueIsolation(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()

	u := user("u1", true)
	s.Insert(ctx, u)
	u.TrackedWallets[0] = "mutated"

	got, _ := s.GetByID(ctx, "u1")
	if got.TrackedWallets[0] != "TraderA" {
		t.Errorf("stored slice was mutated: %v", got.TrackedWallets)
	}
}
