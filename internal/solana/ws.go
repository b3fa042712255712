package solana

import "context"

// LogEvent is one wallet-activity notification from the log stream.
type LogEvent struct {
	Wallet    string
	Signature string
	Slot      int64
	Logs      []string
	Failed    bool
}

// LogStream delivers log events for watched wallets.
type LogStream interface {
	// Subscribe starts watching a wallet. Safe to call while streaming.
	Subscribe(ctx context.Context, wallet string) error

	// Events is the shared notification channel. Closed by Close.
	Events() <-chan LogEvent

	// Close tears down the connection and the events channel.
	Close() error
}
