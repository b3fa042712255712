package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
	"github.com/happy2099/zap-mono-sub002/internal/storage"
)

// UserStore implements storage.UserStore using PostgreSQL.
type UserStore struct {
	pool *Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

var _ storage.UserStore = (*UserStore)(nil)

const userColumns = `
	id, name, wallet, scale_factor, slippage_bps, tracked_wallets, active, created_at
`

// Insert adds a user. Returns ErrDuplicateKey if the id exists.
func (s *UserStore) Insert(ctx context.Context, u *domain.User) error {
	if u == nil || u.ID == "" || u.Wallet == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query,
		u.ID, u.Name, u.Wallet,
		u.Policy.ScaleFactor, u.Policy.SlippageBps,
		u.TrackedWallets, u.Active, u.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user. Returns ErrNotFound if absent.
func (s *UserStore) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetUserPolicy returns the user's sizing policy.
func (s *UserStore) GetUserPolicy(ctx context.Context, userID string) (domain.UserPolicy, error) {
	query := `SELECT scale_factor, slippage_bps FROM users WHERE id = $1`

	var policy domain.UserPolicy
	err := s.pool.QueryRow(ctx, query, userID).Scan(&policy.ScaleFactor, &policy.SlippageBps)
	if err != nil {
		if isNotFoundError(err) {
			return domain.UserPolicy{}, storage.ErrNotFound
		}
		return domain.UserPolicy{}, fmt.Errorf("get user policy: %w", err)
	}
	return policy, nil
}

// GetPrimaryWallet returns the wallet trades are signed for.
func (s *UserStore) GetPrimaryWallet(ctx context.Context, userID string) (string, error) {
	query := `SELECT wallet FROM users WHERE id = $1`

	var wallet string
	err := s.pool.QueryRow(ctx, query, userID).Scan(&wallet)
	if err != nil {
		if isNotFoundError(err) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get primary wallet: %w", err)
	}
	return wallet, nil
}

// ListActive returns all active users, ordered by id.
func (s *UserStore) ListActive(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE active ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Wallet,
		&u.Policy.ScaleFactor, &u.Policy.SlippageBps,
		&u.TrackedWallets, &u.Active, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
