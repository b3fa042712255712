package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
	"github.com/happy2099/zap-mono-sub002/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
// The classified trade rides along as JSONB; the state-machine columns are
// relational so they can be indexed and queried.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

const tradeRecordColumns = `
	id, user_id, signature, state, attempts, trade,
	started_at, ended_at, submitted_signature, execution_time_ms,
	error_category, error_message
`

// Insert adds a new record. Returns ErrDuplicateKey when the id collides
// or a non-terminal record for the same signature already exists.
func (s *TradeRecordStore) Insert(ctx context.Context, r *domain.TradeRecord) error {
	if r == nil || r.ID == "" || r.Trade == nil {
		return storage.ErrInvalidInput
	}

	trade, err := json.Marshal(r.Trade)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}

	query := `
		INSERT INTO trade_records (` + tradeRecordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.pool.Exec(ctx, query,
		r.ID, r.UserID, r.Trade.Signature, string(r.State), r.Attempts, trade,
		nullableTime(r.StartedAt), nullableTime(r.EndedAt),
		r.SubmittedSignature, r.ExecutionTime.Milliseconds(),
		string(r.ErrorCategory), r.ErrorMessage,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// Update overwrites an existing record. Returns ErrNotFound if absent.
func (s *TradeRecordStore) Update(ctx context.Context, r *domain.TradeRecord) error {
	if r == nil || r.ID == "" || r.Trade == nil {
		return storage.ErrInvalidInput
	}

	trade, err := json.Marshal(r.Trade)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}

	query := `
		UPDATE trade_records SET
			state = $2, attempts = $3, trade = $4,
			ended_at = $5, submitted_signature = $6, execution_time_ms = $7,
			error_category = $8, error_message = $9
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query,
		r.ID, string(r.State), r.Attempts, trade,
		nullableTime(r.EndedAt), r.SubmittedSignature, r.ExecutionTime.Milliseconds(),
		string(r.ErrorCategory), r.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("update trade record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a record by id. Returns ErrNotFound if absent.
func (s *TradeRecordStore) GetByID(ctx context.Context, id string) (*domain.TradeRecord, error) {
	query := `SELECT ` + tradeRecordColumns + ` FROM trade_records WHERE id = $1`

	r, err := scanTradeRecord(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by id: %w", err)
	}
	return r, nil
}

// GetActiveBySignature returns the non-terminal record for a signature.
func (s *TradeRecordStore) GetActiveBySignature(ctx context.Context, signature string) (*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeRecordColumns + `
		FROM trade_records
		WHERE signature = $1 AND state IN ('pending', 'executing')
		LIMIT 1
	`

	r, err := scanTradeRecord(s.pool.QueryRow(ctx, query, signature))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get active trade record by signature: %w", err)
	}
	return r, nil
}

// ListByUser retrieves a user's records, newest first.
func (s *TradeRecordStore) ListByUser(ctx context.Context, userID string) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeRecordColumns + `
		FROM trade_records
		WHERE user_id = $1
		ORDER BY started_at DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list trade records by user: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// ListByState retrieves records in the given state, oldest first.
func (s *TradeRecordStore) ListByState(ctx context.Context, state domain.TradeState) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeRecordColumns + `
		FROM trade_records
		WHERE state = $1
		ORDER BY started_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(state))
	if err != nil {
		return nil, fmt.Errorf("list trade records by state: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var (
		r           domain.TradeRecord
		signature   string
		state       string
		trade       []byte
		startedAt   sql.NullTime
		endedAt     sql.NullTime
		execTimeMs  int64
		errCategory string
	)

	err := row.Scan(
		&r.ID, &r.UserID, &signature, &state, &r.Attempts, &trade,
		&startedAt, &endedAt, &r.SubmittedSignature, &execTimeMs,
		&errCategory, &r.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	r.State = domain.TradeState(state)
	r.ErrorCategory = domain.ErrorCategory(errCategory)
	r.ExecutionTime = time.Duration(execTimeMs) * time.Millisecond
	if startedAt.Valid {
		r.StartedAt = startedAt.Time
	}
	if endedAt.Valid {
		r.EndedAt = endedAt.Time
	}

	r.Trade = &domain.ClassifiedTrade{}
	if err := json.Unmarshal(trade, r.Trade); err != nil {
		return nil, fmt.Errorf("unmarshal trade: %w", err)
	}
	_ = signature // column is denormalized from the trade payload

	return &r, nil
}

func scanTradeRecords(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	var records []*domain.TradeRecord
	for rows.Next() {
		r, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record rows: %w", err)
	}
	return records, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
