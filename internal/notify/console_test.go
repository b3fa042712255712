package notify

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
)

func captureLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	return log, &buf
}

func TestConsole_TradeCompleted(t *testing.T) {
	log, buf := captureLogger()
	n := NewConsole(log)

	n.TradeCompleted(context.Background(), &domain.TradeRecord{
		ID:                 "rec-1",
		UserID:             "user-1",
		Trade:              &domain.ClassifiedTrade{Signature: "orig-sig"},
		State:              domain.TradeStateCompleted,
		SubmittedSignature: "copied-sig",
		ExecutionTime:      1200 * time.Millisecond,
		Attempts:           1,
	})

	out := buf.String()
	assert.Contains(t, out, "trade copied")
	assert.Contains(t, out, "orig-sig")
	assert.Contains(t, out, "copied-sig")
	assert.Contains(t, out, "1.2s")
}

func TestConsole_TradeFailed_UserFacingMessage(t *testing.T) {
	log, buf := captureLogger()
	n := NewConsole(log)

	n.TradeFailed(context.Background(), &domain.TradeRecord{
		ID:            "rec-1",
		UserID:        "user-1",
		Trade:         &domain.ClassifiedTrade{Signature: "orig-sig"},
		State:         domain.TradeStateFailed,
		ErrorCategory: domain.ErrorCategoryResource,
		ErrorMessage:  "account FollowerWallet... has 0 lamports",
		Attempts:      1,
	})

	out := buf.String()
	assert.Contains(t, out, "insufficient balance: top up the wallet and retry")
	// Raw internal error text never reaches the notification.
	assert.NotContains(t, out, "lamports")
}

func TestConsole_NilRecord(t *testing.T) {
	log, buf := captureLogger()
	n := NewConsole(log)

	n.TradeCompleted(context.Background(), nil)
	n.TradeFailed(context.Background(), nil)
	assert.Empty(t, buf.String())
}
