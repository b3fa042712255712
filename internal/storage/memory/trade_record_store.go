// Package memory provides in-memory store implementations backed by
// RWMutex-guarded maps. Values are copied on the way in and out.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
	"github.com/happy2099/zap-mono-sub002/internal/storage"
)

// TradeRecordStore is an in-memory implementation of storage.TradeRecordStore.
type TradeRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeRecord // keyed by record id
}

// NewTradeRecordStore creates a new in-memory trade record store.
func NewTradeRecordStore() *TradeRecordStore {
	return &TradeRecordStore{
		data: make(map[string]*domain.TradeRecord),
	}
}

var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if the id exists or a
// non-terminal record already holds the trade's signature, mirroring the
// partial unique index of the Postgres store.
func (s *TradeRecordStore) Insert(_ context.Context, r *domain.TradeRecord) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if r.Trade != nil && !r.State.Terminal() {
		for _, existing := range s.data {
			if existing.Trade != nil && existing.Trade.Signature == r.Trade.Signature && !existing.State.Terminal() {
				return storage.ErrDuplicateKey
			}
		}
	}

	s.data[r.ID] = copyRecord(r)
	return nil
}

// Update overwrites an existing record. Returns ErrNotFound if absent.
func (s *TradeRecordStore) Update(_ context.Context, r *domain.TradeRecord) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; !exists {
		return storage.ErrNotFound
	}

	s.data[r.ID] = copyRecord(r)
	return nil
}

// GetByID retrieves a record by id. Returns ErrNotFound if absent.
func (s *TradeRecordStore) GetByID(_ context.Context, id string) (*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRecord(r), nil
}

// GetActiveBySignature returns the non-terminal record for a signature.
func (s *TradeRecordStore) GetActiveBySignature(_ context.Context, signature string) (*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.data {
		if r.Trade != nil && r.Trade.Signature == signature && !r.State.Terminal() {
			return copyRecord(r), nil
		}
	}
	return nil, storage.ErrNotFound
}

// ListByUser retrieves a user's records, newest first.
func (s *TradeRecordStore) ListByUser(_ context.Context, userID string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for _, r := range s.data {
		if r.UserID == userID {
			result = append(result, copyRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result, nil
}

// ListByState retrieves records in the given state, oldest first.
func (s *TradeRecordStore) ListByState(_ context.Context, state domain.TradeState) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for _, r := range s.data {
		if r.State == state {
			result = append(result, copyRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result, nil
}

// copyRecord deep-copies a record, including the nested trade.
func copyRecord(r *domain.TradeRecord) *domain.TradeRecord {
	out := *r
	if r.Trade != nil {
		trade := *r.Trade
		out.Trade = &trade
	}
	return &out
}
