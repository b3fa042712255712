package domain

import "time"

// TradeType is the direction of a detected swap from the trader's view.
type TradeType string

const (
	// TradeTypeBuy is native in, token out.
	TradeTypeBuy TradeType = "buy"
	// TradeTypeSell is token in, native out.
	TradeTypeSell TradeType = "sell"
	// TradeTypeTokenForToken is token in, different token out. Executed as
	// a buy of the output token funded by the input token.
	TradeTypeTokenForToken TradeType = "token_for_token"
)

// SwapDetection is the balance-diff verdict for a transaction. Derived
// from a TransactionEvent, never stored.
type SwapDetection struct {
	IsSwap bool
	Type   TradeType

	InputMint  string
	OutputMint string

	InputAmountRaw  uint64
	OutputAmountRaw uint64

	InputDecimals  uint8
	OutputDecimals uint8
}

// ClassifiedTrade is a detected swap with its executing venue resolved.
// Produced once per TransactionEvent; immutable after classification.
type ClassifiedTrade struct {
	SwapDetection

	Venue          Venue
	VenueProgramID string

	// PoolID is the AMM pool the swap went through (empty for bonding-curve
	// venues, which derive their curve account from the mint).
	PoolID string
	// BondingCurve is the bonding-curve account for launchpad venues.
	BondingCurve string

	Trader    string
	Signature string
	Slot      int64

	// Confidence is 0-100. Direct program-id matches score 100; heuristic
	// resolutions score lower and gate retry eligibility.
	Confidence int

	// Router is set when the trade went through a known aggregator,
	// whether or not the inner venue was resolved.
	Router string

	// OriginVenue records the venue a migrated mint originally traded on.
	OriginVenue Venue

	// Reason explains non-copyable classifications.
	Reason string
}

// ReasonSwapConfirmedUnknownDEX marks trades the balance diff proved to be
// swaps but whose executing venue no signal could resolve. They are
// archived distinctly from non-swaps; reconstruction still requires a
// venue, so they are not copyable.
const ReasonSwapConfirmedUnknownDEX = "unknown dex, swap confirmed"

// Copyable reports whether the trade carries enough information to attempt
// reconstruction for another wallet.
func (t *ClassifiedTrade) Copyable() bool {
	return t != nil && t.IsSwap && t.Venue != VenueUnknown
}

// SwapConfirmedUnknownVenue reports whether the trade is a confirmed swap
// on an unresolvable venue.
func (t *ClassifiedTrade) SwapConfirmedUnknownVenue() bool {
	return t != nil && t.IsSwap && t.Venue == VenueUnknown && t.Reason == ReasonSwapConfirmedUnknownDEX
}

// UserPolicy is the per-user sizing and tolerance configuration read
// through the persistence accessor.
type UserPolicy struct {
	ScaleFactor float64 // applied as floor(originalAmount * ScaleFactor)
	SlippageBps int     // basis points tolerance on the minimum output
}

// TradeState is the lifecycle state of a TradeRecord.
type TradeState string

const (
	TradeStatePending   TradeState = "pending"
	TradeStateExecuting TradeState = "executing"
	TradeStateCompleted TradeState = "completed"
	TradeStateFailed    TradeState = "failed"
	TradeStateCancelled TradeState = "cancelled"
)

// Terminal reports whether the state is final. Terminal records are
// archived and never transition again.
func (s TradeState) Terminal() bool {
	switch s {
	case TradeStateCompleted, TradeStateFailed, TradeStateCancelled:
		return true
	}
	return false
}

// TradeRecord tracks one reconstruction job through the execution state
// machine. At most one non-terminal record may exist per originating
// signature at any time.
type TradeRecord struct {
	ID       string // uuid
	UserID   string
	Trade    *ClassifiedTrade
	State    TradeState
	Attempts int

	StartedAt time.Time
	EndedAt   time.Time

	// Set on completion.
	SubmittedSignature string
	ExecutionTime      time.Duration

	// Set on failure.
	ErrorCategory ErrorCategory
	ErrorMessage  string
}
