// Package storage defines the persistence contracts the engine depends on
// and the sentinel errors every implementation returns.
package storage

import (
	"context"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
)

// TradeRecordStore persists execution state machine records.
type TradeRecordStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, r *domain.TradeRecord) error

	// Update overwrites an existing record. Returns ErrNotFound if absent.
	Update(ctx context.Context, r *domain.TradeRecord) error

	// GetByID retrieves a record by id. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*domain.TradeRecord, error)

	// GetActiveBySignature returns the non-terminal record for an
	// originating signature, or ErrNotFound. At most one may exist.
	GetActiveBySignature(ctx context.Context, signature string) (*domain.TradeRecord, error)

	// ListByUser retrieves a user's records, newest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.TradeRecord, error)

	// ListByState retrieves records in the given state, oldest first.
	ListByState(ctx context.Context, state domain.TradeState) ([]*domain.TradeRecord, error)
}

// UserStore is the narrow accessor for follower configuration.
type UserStore interface {
	// Insert adds a user. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, u *domain.User) error

	// GetByID retrieves a user. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, userID string) (*domain.User, error)

	// GetUserPolicy returns the user's sizing policy.
	GetUserPolicy(ctx context.Context, userID string) (domain.UserPolicy, error)

	// GetPrimaryWallet returns the base58 wallet trades are signed for.
	GetPrimaryWallet(ctx context.Context, userID string) (string, error)

	// ListActive returns all users currently copying trades.
	ListActive(ctx context.Context) ([]*domain.User, error)
}

// ObservedTradeStore is the append-only analytics archive of classified
// trades, copyable or not.
type ObservedTradeStore interface {
	// Insert appends one observed trade.
	Insert(ctx context.Context, t *domain.ClassifiedTrade) error

	// InsertBulk appends a batch.
	InsertBulk(ctx context.Context, trades []*domain.ClassifiedTrade) error

	// ListByTrader retrieves archived trades for a source wallet, newest
	// first, up to limit.
	ListByTrader(ctx context.Context, trader string, limit int) ([]*domain.ClassifiedTrade, error)
}
