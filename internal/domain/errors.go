package domain

import (
	"errors"
	"fmt"
)

// ErrorCategory buckets trade failures for retry policy and user-facing
// notifications.
type ErrorCategory string

const (
	// ErrorCategoryDetection covers trader-not-found and ambiguous balance
	// patterns. Logged, never retried.
	ErrorCategoryDetection ErrorCategory = "detection"
	// ErrorCategoryClassification covers routers with no resolvable inner
	// venue and unknown programs. Never retried.
	ErrorCategoryClassification ErrorCategory = "classification"
	// ErrorCategoryDerivation covers seed/program mismatches. Fatal;
	// indicates schema or version drift.
	ErrorCategoryDerivation ErrorCategory = "derivation"
	// ErrorCategoryEncoding covers payload schema violations and field
	// overflow. Fatal, same cause class as derivation drift.
	ErrorCategoryEncoding ErrorCategory = "encoding"
	// ErrorCategoryResource covers missing wallets and unfunded account
	// creation. Fatal per job, actionable by the user.
	ErrorCategoryResource ErrorCategory = "resource"
	// ErrorCategoryNetwork covers quote, metadata and submission timeouts.
	// Transient; retried up to the bounded attempt count.
	ErrorCategoryNetwork ErrorCategory = "network"
	// ErrorCategoryRejection covers on-chain program rejection of the
	// submitted instruction. Terminal.
	ErrorCategoryRejection ErrorCategory = "rejection"
)

// Transient reports whether failures in this category may be retried.
func (c ErrorCategory) Transient() bool {
	return c == ErrorCategoryNetwork
}

// UserMessage rewrites the category into one of the small set of
// actionable messages surfaced to users, never raw internal error text.
func (c ErrorCategory) UserMessage() string {
	switch c {
	case ErrorCategoryResource:
		return "insufficient balance: top up the wallet and retry"
	case ErrorCategoryNetwork:
		return "network issue: the trade could not reach the chain in time"
	case ErrorCategoryRejection:
		return "transaction rejected by the exchange program"
	default:
		return "trade could not be copied"
	}
}

// TradeError attaches a category to an underlying error. It unwraps, so
// sentinel checks with errors.Is keep working through it.
type TradeError struct {
	Category ErrorCategory
	Err      error
}

func (e *TradeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

// Categorize wraps err with a category. A nil err returns nil.
func Categorize(category ErrorCategory, err error) error {
	if err == nil {
		return nil
	}
	return &TradeError{Category: category, Err: err}
}

// Categorizef wraps a formatted error with a category.
func Categorizef(category ErrorCategory, format string, args ...interface{}) error {
	return &TradeError{Category: category, Err: fmt.Errorf(format, args...)}
}

// CategoryOf extracts the category from an error chain. Uncategorized
// errors default to network: transport wrappers rarely tag errors, and the
// bounded retry policy caps the cost of a wrong guess.
func CategoryOf(err error) ErrorCategory {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Category
	}
	return ErrorCategoryNetwork
}

// Sentinel errors raised by the reconstruction pipeline.
var (
	// ErrTraderNotFound means the trader address is not in the
	// transaction's account key list.
	ErrTraderNotFound = errors.New("trader not found in transaction accounts")

	// ErrMissingCloningTarget means classification produced no matched
	// instruction to reconstruct.
	ErrMissingCloningTarget = errors.New("missing cloning target")

	// ErrUnsupportedVenue means no payload encoder exists for the venue.
	ErrUnsupportedVenue = errors.New("unsupported venue")

	// ErrVenueLayoutMismatch means a transaction's instruction did not
	// have the account shape the venue's layout descriptor expects.
	ErrVenueLayoutMismatch = errors.New("instruction accounts do not match venue layout")

	// ErrDuplicateSignature means a non-terminal trade record already
	// exists for the originating signature.
	ErrDuplicateSignature = errors.New("trade already in flight for signature")
)
