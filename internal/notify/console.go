package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
)

// Console logs trade outcomes through the process logger. It is the
// default sink when no chat transport is configured.
type Console struct {
	log *logrus.Logger
}

// NewConsole creates a console notifier.
func NewConsole(log *logrus.Logger) *Console {
	if log == nil {
		log = logrus.New()
	}
	return &Console{log: log}
}

var _ Notifier = (*Console)(nil)

// TradeCompleted logs a successful copy with its submitted signature and
// observed execution time.
func (c *Console) TradeCompleted(_ context.Context, record *domain.TradeRecord) {
	if record == nil {
		return
	}
	c.log.WithFields(logrus.Fields{
		"record_id":      record.ID,
		"user_id":        record.UserID,
		"origin_sig":     originSignature(record),
		"submitted_sig":  record.SubmittedSignature,
		"execution_time": record.ExecutionTime.String(),
		"attempts":       record.Attempts,
	}).Info("trade copied")
}

// TradeFailed logs a terminal failure with the category's user-facing
// message. The raw error stays in the record, not in the notification.
func (c *Console) TradeFailed(_ context.Context, record *domain.TradeRecord) {
	if record == nil {
		return
	}
	c.log.WithFields(logrus.Fields{
		"record_id":  record.ID,
		"user_id":    record.UserID,
		"origin_sig": originSignature(record),
		"state":      string(record.State),
		"category":   string(record.ErrorCategory),
		"attempts":   record.Attempts,
	}).Warn(record.ErrorCategory.UserMessage())
}

func originSignature(record *domain.TradeRecord) string {
	if record.Trade == nil {
		return ""
	}
	return record.Trade.Signature
}
