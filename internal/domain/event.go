package domain

// AccountMeta describes one account referenced by an instruction,
// with its role flags resolved for the transaction it appeared in.
type AccountMeta struct {
	Address    string // base58 account address
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single resolved instruction: program id and account
// references are already mapped from message indices to addresses.
type Instruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte // raw instruction payload
}

// TokenBalance is a pre- or post-transaction SPL token balance entry.
type TokenBalance struct {
	AccountIndex int    // index into the transaction's account key list
	Mint         string // token mint address
	Owner        string // owner of the token account
	Amount       uint64 // raw amount (no decimal normalization)
	Decimals     uint8
}

// TransactionEvent is an observed ledger transaction in the shape the
// detection and classification pipeline consumes. Immutable once built.
type TransactionEvent struct {
	Signature string
	Slot      int64
	BlockTime int64 // Unix timestamp (seconds)

	// AccountKeys is the ordered account list, including addresses loaded
	// from lookup tables (writable first, then read-only).
	AccountKeys []string

	// Instructions are the top-level instructions in message order.
	Instructions []Instruction

	// InnerInstructions maps a top-level instruction index to the inner
	// instructions it produced during execution.
	InnerInstructions map[int][]Instruction

	Logs []string

	// PreBalances and PostBalances are lamport balances per account index.
	PreBalances  []uint64
	PostBalances []uint64

	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// AccountIndex returns the index of an address in the account key list,
// or -1 if the address does not appear in the transaction.
func (e *TransactionEvent) AccountIndex(address string) int {
	for i, key := range e.AccountKeys {
		if key == address {
			return i
		}
	}
	return -1
}
