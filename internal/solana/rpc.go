// Package solana provides the ledger I/O clients: a JSON-RPC HTTP client
// for transaction fetch, account probing, and submission, and a WebSocket
// stream for wallet activity.
package solana

import (
	"context"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
)

// Client is the RPC surface the engine consumes.
type Client interface {
	// GetTransactionEvent fetches a confirmed transaction with full meta.
	// Returns (nil, nil) when the signature is unknown to the node.
	GetTransactionEvent(ctx context.Context, signature string) (*domain.TransactionEvent, error)

	// GetLatestBlockhash returns a recent blockhash for transaction assembly.
	GetLatestBlockhash(ctx context.Context) (Blockhash, error)

	// AccountExists reports whether an account is allocated on chain.
	AccountExists(ctx context.Context, address string) (bool, error)

	// MultipleAccountsExist batches existence checks for up to 100 addresses.
	MultipleAccountsExist(ctx context.Context, addresses []string) (map[string]bool, error)

	// SendTransaction submits a signed, base64-encoded transaction and
	// returns its signature.
	SendTransaction(ctx context.Context, signedTx string) (string, error)

	// GetSlot returns the current confirmed slot.
	GetSlot(ctx context.Context) (int64, error)
}

// Blockhash is a recent blockhash with its expiry height.
type Blockhash struct {
	Hash                 string
	LastValidBlockHeight uint64
}
