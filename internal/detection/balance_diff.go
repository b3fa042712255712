// Package detection decides whether an observed transaction is a swap by
// diffing the trader's native and token balances.
package detection

import (
	"github.com/sirupsen/logrus"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
)

// DefaultNativeThreshold is the lamport floor below which a native delta
// is treated as fee noise, not trade flow. Tuned against mainnet base +
// priority fee distribution; override via config when fees shift.
const DefaultNativeThreshold uint64 = 5_000_000

// nativeDecimals is the decimal count of the native unit (lamports per SOL).
const nativeDecimals uint8 = 9

// Detector classifies transactions from balance movement alone. It needs
// no venue knowledge: a swap is visible as native flowing one way and a
// token flowing the other.
type Detector struct {
	threshold uint64
	log       *logrus.Logger
}

// NewDetector creates a Detector with the given native-delta threshold.
// A zero threshold falls back to DefaultNativeThreshold.
func NewDetector(thresholdLamports uint64, log *logrus.Logger) *Detector {
	if thresholdLamports == 0 {
		thresholdLamports = DefaultNativeThreshold
	}
	if log == nil {
		log = logrus.New()
	}
	return &Detector{threshold: thresholdLamports, log: log}
}

// tokenDelta aggregates signed movement for one mint across the trader's
// token accounts.
type tokenDelta struct {
	mint     string
	delta    int64
	decimals uint8
}

// Detect inspects the trader's balance changes in the event and returns
// the swap verdict. A transaction that is not a swap yields IsSwap=false
// with a nil error; only a trader absent from the account list is an error.
func (d *Detector) Detect(ev *domain.TransactionEvent, trader string) (*domain.SwapDetection, error) {
	idx := ev.AccountIndex(trader)
	if idx < 0 {
		return nil, domain.Categorize(domain.ErrorCategoryDetection, domain.ErrTraderNotFound)
	}

	var nativeDelta int64
	if idx < len(ev.PreBalances) && idx < len(ev.PostBalances) {
		nativeDelta = int64(ev.PostBalances[idx]) - int64(ev.PreBalances[idx])
	}

	deltas := d.tokenDeltas(ev, trader)

	det := d.classify(nativeDelta, deltas)

	d.log.WithFields(logrus.Fields{
		"signature":    ev.Signature,
		"trader":       trader,
		"native_delta": nativeDelta,
		"is_swap":      det.IsSwap,
		"type":         det.Type,
	}).Debug("balance diff evaluated")

	return det, nil
}

// tokenDeltas sums pre (negative) and post (positive) token amounts per
// mint, restricted to accounts owned by the trader.
func (d *Detector) tokenDeltas(ev *domain.TransactionEvent, trader string) []tokenDelta {
	byMint := make(map[string]*tokenDelta)

	for _, b := range ev.PreTokenBalances {
		if b.Owner != trader {
			continue
		}
		td := byMint[b.Mint]
		if td == nil {
			td = &tokenDelta{mint: b.Mint, decimals: b.Decimals}
			byMint[b.Mint] = td
		}
		td.delta -= int64(b.Amount)
	}
	for _, b := range ev.PostTokenBalances {
		if b.Owner != trader {
			continue
		}
		td := byMint[b.Mint]
		if td == nil {
			td = &tokenDelta{mint: b.Mint, decimals: b.Decimals}
			byMint[b.Mint] = td
		}
		td.delta += int64(b.Amount)
	}

	deltas := make([]tokenDelta, 0, len(byMint))
	for _, td := range byMint {
		if td.delta != 0 {
			deltas = append(deltas, *td)
		}
	}
	return deltas
}

// classify applies the direction rules. Wrapped native is excluded from
// the token legs: a WSOL account movement mirrors the lamport movement.
func (d *Detector) classify(nativeDelta int64, deltas []tokenDelta) *domain.SwapDetection {
	var received, sent *tokenDelta
	for i := range deltas {
		td := &deltas[i]
		if td.mint == domain.WSOL {
			continue
		}
		switch {
		case td.delta > 0 && (received == nil || td.delta > received.delta):
			received = td
		case td.delta < 0 && (sent == nil || td.delta < sent.delta):
			sent = td
		}
	}

	threshold := int64(d.threshold)

	switch {
	case nativeDelta < -threshold && received != nil:
		return &domain.SwapDetection{
			IsSwap:          true,
			Type:            domain.TradeTypeBuy,
			InputMint:       domain.WSOL,
			OutputMint:      received.mint,
			InputAmountRaw:  uint64(-nativeDelta),
			OutputAmountRaw: uint64(received.delta),
			InputDecimals:   nativeDecimals,
			OutputDecimals:  received.decimals,
		}

	case nativeDelta > threshold && sent != nil:
		return &domain.SwapDetection{
			IsSwap:          true,
			Type:            domain.TradeTypeSell,
			InputMint:       sent.mint,
			OutputMint:      domain.WSOL,
			InputAmountRaw:  uint64(-sent.delta),
			OutputAmountRaw: uint64(nativeDelta),
			InputDecimals:   sent.decimals,
			OutputDecimals:  nativeDecimals,
		}

	case received != nil && sent != nil:
		// Token-for-token: executed downstream as a buy of the received
		// token funded by the sent token.
		return &domain.SwapDetection{
			IsSwap:          true,
			Type:            domain.TradeTypeTokenForToken,
			InputMint:       sent.mint,
			OutputMint:      received.mint,
			InputAmountRaw:  uint64(-sent.delta),
			OutputAmountRaw: uint64(received.delta),
			InputDecimals:   sent.decimals,
			OutputDecimals:  received.decimals,
		}
	}

	return &domain.SwapDetection{IsSwap: false}
}
