package domain

import "time"

// User is a follower account: the wallet trades are reconstructed for and
// the sizing policy applied to them.
type User struct {
	ID     string
	Name   string
	Wallet string // primary wallet, base58

	Policy UserPolicy

	// TrackedWallets are the source traders this user copies.
	TrackedWallets []string

	Active    bool
	CreatedAt time.Time
}
