package clickhouse

import (
	"context"
	"fmt"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
	"github.com/happy2099/zap-mono-sub002/internal/storage"
)

const observedTradeColumns = `
	signature, trader, slot,
	is_swap, trade_type, input_mint, output_mint,
	input_amount_raw, output_amount_raw, input_decimals, output_decimals,
	venue, venue_program_id, pool_id, bonding_curve,
	confidence, router, origin_venue, reason
`

// ObservedTradeStore implements storage.ObservedTradeStore using ClickHouse.
type ObservedTradeStore struct {
	conn *Conn
}

// NewObservedTradeStore creates a new ObservedTradeStore.
func NewObservedTradeStore(conn *Conn) *ObservedTradeStore {
	return &ObservedTradeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ObservedTradeStore = (*ObservedTradeStore)(nil)

// Insert appends a single observed trade.
func (s *ObservedTradeStore) Insert(ctx context.Context, t *domain.ClassifiedTrade) error {
	if t == nil {
		return storage.ErrInvalidInput
	}
	return s.InsertBulk(ctx, []*domain.ClassifiedTrade{t})
}

// InsertBulk appends a batch of observed trades. The archive is
// append-only; duplicate signatures are allowed and collapse in queries.
func (s *ObservedTradeStore) InsertBulk(ctx context.Context, trades []*domain.ClassifiedTrade) error {
	if len(trades) == 0 {
		return nil
	}

	for _, t := range trades {
		if t == nil || t.Signature == "" || t.Trader == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf(`
		INSERT INTO observed_trades (%s)
	`, observedTradeColumns))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		isSwap := uint8(0)
		if t.IsSwap {
			isSwap = 1
		}
		err = batch.Append(
			t.Signature, t.Trader, t.Slot,
			isSwap, string(t.Type), t.InputMint, t.OutputMint,
			t.InputAmountRaw, t.OutputAmountRaw, t.InputDecimals, t.OutputDecimals,
			string(t.Venue), t.VenueProgramID, t.PoolID, t.BondingCurve,
			int32(t.Confidence), t.Router, string(t.OriginVenue), t.Reason,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// ListByTrader retrieves archived trades for a source wallet, newest
// first by slot, up to limit.
func (s *ObservedTradeStore) ListByTrader(ctx context.Context, trader string, limit int) ([]*domain.ClassifiedTrade, error) {
	if trader == "" || limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM observed_trades
		WHERE trader = ?
		ORDER BY slot DESC, signature DESC
		LIMIT ?
	`, observedTradeColumns)

	rows, err := s.conn.Query(ctx, query, trader, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query by trader: %w", err)
	}
	defer rows.Close()

	return scanObservedTrades(rows)
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanObservedTrades scans multiple rows into a slice.
func scanObservedTrades(rows chRows) ([]*domain.ClassifiedTrade, error) {
	var trades []*domain.ClassifiedTrade

	for rows.Next() {
		var (
			t           domain.ClassifiedTrade
			isSwap      uint8
			tradeType   string
			venue       string
			originVenue string
			confidence  int32
		)

		err := rows.Scan(
			&t.Signature, &t.Trader, &t.Slot,
			&isSwap, &tradeType, &t.InputMint, &t.OutputMint,
			&t.InputAmountRaw, &t.OutputAmountRaw, &t.InputDecimals, &t.OutputDecimals,
			&venue, &t.VenueProgramID, &t.PoolID, &t.BondingCurve,
			&confidence, &t.Router, &originVenue, &t.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observed trade row: %w", err)
		}

		t.IsSwap = isSwap == 1
		t.Type = domain.TradeType(tradeType)
		t.Venue = domain.Venue(venue)
		t.OriginVenue = domain.Venue(originVenue)
		t.Confidence = int(confidence)
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observed trade rows: %w", err)
	}

	return trades, nil
}
