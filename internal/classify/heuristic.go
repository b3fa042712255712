package classify

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/happy2099/zap-mono-sub002/internal/derive"
	"github.com/happy2099/zap-mono-sub002/internal/domain"
)

const heuristicTimeout = 3 * time.Second

// verdict is a single evaluator's opinion about the executing venue.
type verdict struct {
	venue      domain.Venue
	poolID     string
	curve      string
	confidence int
	source     string
}

// heuristicClassify runs the fallback evaluators concurrently and keeps the
// highest-confidence verdict. Evaluators that cannot reach their data source
// stay silent rather than guessing.
func (c *Classifier) heuristicClassify(ctx context.Context, ev *domain.TransactionEvent, base *domain.ClassifiedTrade) *domain.ClassifiedTrade {
	ctx, cancel := context.WithTimeout(ctx, heuristicTimeout)
	defer cancel()

	mint := tradeMint(base)

	verdicts := make(chan verdict, 3)
	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		c.probeBondingCurve(ctx, mint, verdicts)
	}()
	go func() {
		defer wg.Done()
		c.matchPrimaryPool(ctx, mint, verdicts)
	}()
	go func() {
		defer wg.Done()
		c.scanAccountKeys(ev, verdicts)
	}()

	go func() {
		wg.Wait()
		close(verdicts)
	}()

	var best verdict
	for v := range verdicts {
		if v.confidence > best.confidence {
			best = v
		}
	}

	trade := *base
	if best.confidence == 0 {
		// The balance diff already proved a swap; only the venue is
		// unresolved. Mark it so the archive can tell it apart from
		// plain non-swaps.
		trade.Reason = domain.ReasonSwapConfirmedUnknownDEX
		return &trade
	}

	trade.Venue = best.venue
	trade.VenueProgramID = best.venue.ProgramID()
	trade.PoolID = best.poolID
	trade.BondingCurve = best.curve
	trade.Confidence = best.confidence

	c.log.WithFields(logrus.Fields{
		"signature":  ev.Signature,
		"venue":      trade.Venue,
		"confidence": trade.Confidence,
		"source":     best.source,
	}).Info("venue resolved heuristically")
	return &trade
}

// probeBondingCurve checks for a live bonding curve account for the mint. A
// live curve pins the venue exactly, so this evaluator reports full
// confidence.
func (c *Classifier) probeBondingCurve(ctx context.Context, mint string, out chan<- verdict) {
	if c.prober == nil || mint == "" {
		return
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return
	}
	curve, _, err := derive.BondingCurve(mintKey)
	if err != nil {
		return
	}
	exists, err := c.prober.AccountExists(ctx, curve.String())
	if err != nil || !exists {
		return
	}
	out <- verdict{
		venue:      domain.VenuePumpFun,
		curve:      curve.String(),
		confidence: 100,
		source:     "bonding-curve probe",
	}
}

// matchPrimaryPool asks the metadata service which market holds the mint's
// primary liquidity and maps the market label to a venue.
func (c *Classifier) matchPrimaryPool(ctx context.Context, mint string, out chan<- verdict) {
	if c.resolver == nil || mint == "" {
		return
	}
	pool, err := c.resolver.GetPrimaryPool(ctx, mint)
	if err != nil || pool == nil {
		return
	}

	switch pool.Market {
	case "pumpswap":
		out <- verdict{venue: domain.VenuePumpSwap, poolID: pool.PoolID, confidence: 98, source: "primary pool"}
	case "raydium", "raydium_v4":
		out <- verdict{venue: domain.VenueRaydiumV4, poolID: pool.PoolID, confidence: 95, source: "primary pool"}
	case "pumpfun":
		out <- verdict{venue: domain.VenuePumpFun, poolID: pool.PoolID, confidence: 90, source: "primary pool"}
	}
}

// scanAccountKeys looks for venue program ids anywhere in the transaction's
// account list. Presence alone is weak evidence: programs appear as
// read-only accounts in unrelated flows.
func (c *Classifier) scanAccountKeys(ev *domain.TransactionEvent, out chan<- verdict) {
	for _, key := range ev.AccountKeys {
		switch key {
		case domain.PumpFunProgramID:
			out <- verdict{venue: domain.VenuePumpFun, confidence: 88, source: "account-key scan"}
			return
		case domain.PumpSwapProgramID:
			out <- verdict{venue: domain.VenuePumpSwap, confidence: 80, source: "account-key scan"}
			return
		case domain.RaydiumV4ProgramID:
			out <- verdict{venue: domain.VenueRaydiumV4, confidence: 70, source: "account-key scan"}
			return
		}
	}
}
