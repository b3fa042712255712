// Package notify delivers per-trade outcome notifications to users.
// Failure notifications carry the rewritten category message, never raw
// internal error text.
package notify

import (
	"context"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
)

// Notifier receives one call per terminal trade transition.
type Notifier interface {
	// TradeCompleted reports a successfully submitted copy.
	TradeCompleted(ctx context.Context, record *domain.TradeRecord)

	// TradeFailed reports a terminally failed or cancelled copy.
	TradeFailed(ctx context.Context, record *domain.TradeRecord)
}

// Noop discards all notifications.
type Noop struct{}

func (Noop) TradeCompleted(context.Context, *domain.TradeRecord) {}
func (Noop) TradeFailed(context.Context, *domain.TradeRecord)    {}
