package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
	"github.com/happy2099/zap-mono-sub002/internal/storage"
)

// UserStore is an in-memory implementation of storage.UserStore.
type UserStore struct {
	mu   sync.RWMutex
	data map[string]*domain.User
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		data: make(map[string]*domain.User),
	}
}

var _ storage.UserStore = (*UserStore)(nil)

// Insert adds a user. Returns ErrDuplicateKey if the id exists.
func (s *UserStore) Insert(_ context.Context, u *domain.User) error {
	if u == nil || u.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[u.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[u.ID] = copyUser(u)
	return nil
}

// GetByID retrieves a user. Returns ErrNotFound if absent.
func (s *UserStore) GetByID(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.data[userID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyUser(u), nil
}

// GetUserPolicy returns the user's sizing policy.
func (s *UserStore) GetUserPolicy(ctx context.Context, userID string) (domain.UserPolicy, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return domain.UserPolicy{}, err
	}
	return u.Policy, nil
}

// GetPrimaryWallet returns the wallet trades are signed for.
func (s *UserStore) GetPrimaryWallet(ctx context.Context, userID string) (string, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Wallet, nil
}

// ListActive returns all active users, ordered by id.
func (s *UserStore) ListActive(_ context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.User
	for _, u := range s.data {
		if u.Active {
			result = append(result, copyUser(u))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func copyUser(u *domain.User) *domain.User {
	out := *u
	out.TrackedWallets = append([]string(nil), u.TrackedWallets...)
	return &out
}
