// Package classify resolves which venue executed a detected swap. Direct
// program-id matches win; known aggregators have their inner calls peeled;
// anything else goes through concurrent heuristics.
package classify

import (
	"context"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/happy2099/zap-mono-sub002/internal/derive"
	"github.com/happy2099/zap-mono-sub002/internal/domain"
	"github.com/happy2099/zap-mono-sub002/internal/metadata"
)

// AccountProber checks whether accounts exist on chain.
type AccountProber interface {
	AccountExists(ctx context.Context, address string) (bool, error)
}

// PoolResolver looks up the primary liquidity pool for a mint from the
// metadata collaborator. An absent pool is a negative signal, not an error.
type PoolResolver interface {
	GetPrimaryPool(ctx context.Context, mint string) (*metadata.PoolInfo, error)
}

// Classifier resolves the executing venue for detected swaps.
type Classifier struct {
	prober   AccountProber
	resolver PoolResolver
	log      *logrus.Logger
}

// NewClassifier creates a Classifier. The prober and resolver feed the
// migration check and the heuristic fallback; either may be nil, which
// disables the corresponding signal.
func NewClassifier(prober AccountProber, resolver PoolResolver, log *logrus.Logger) *Classifier {
	if log == nil {
		log = logrus.New()
	}
	return &Classifier{prober: prober, resolver: resolver, log: log}
}

// Classify resolves the venue for a detected swap. The returned trade is
// always non-nil; the cloning target is nil when the trade is not
// copyable or when the executing instruction could not be isolated.
// Unresolvable classifications are results, not errors: only a structural
// problem (venue layout mismatch) returns an error.
func (c *Classifier) Classify(ctx context.Context, ev *domain.TransactionEvent, det *domain.SwapDetection, trader string) (*domain.ClassifiedTrade, *domain.CloningTarget, error) {
	base := &domain.ClassifiedTrade{
		SwapDetection: *det,
		Venue:         domain.VenueUnknown,
		Trader:        trader,
		Signature:     ev.Signature,
		Slot:          ev.Slot,
	}

	if !det.IsSwap {
		base.Reason = "no swap detected"
		return base, nil, nil
	}

	// Tier 1: direct program-id match over top-level instructions.
	for _, instr := range ev.Instructions {
		layout, ok := layoutFor(instr.ProgramID)
		if !ok {
			continue
		}
		pool, curve, _, target, err := layout.Extract(instr)
		if err != nil {
			return nil, nil, err
		}
		trade := *base
		trade.Venue = layout.Venue
		trade.VenueProgramID = layout.ProgramID
		trade.PoolID = pool
		trade.BondingCurve = curve
		trade.Confidence = 100

		c.log.WithFields(logrus.Fields{
			"signature":  ev.Signature,
			"venue":      trade.Venue,
			"confidence": trade.Confidence,
		}).Info("venue resolved by direct match")
		return &trade, target, nil
	}

	// Tier 2: router peeling.
	for i, instr := range ev.Instructions {
		router := domain.RouterName(instr.ProgramID)
		if router == "" {
			continue
		}
		trade, target := c.peelRouter(ctx, ev, base, router, i)
		return trade, target, nil
	}

	// Tier 3: concurrent heuristic fallback.
	trade := c.heuristicClassify(ctx, ev, base)
	return trade, nil, nil
}

// peelRouter inspects an aggregator's inner instructions, then its log
// lines, for the venue that actually executed the swap.
func (c *Classifier) peelRouter(ctx context.Context, ev *domain.TransactionEvent, base *domain.ClassifiedTrade, router string, outerIndex int) (*domain.ClassifiedTrade, *domain.CloningTarget) {
	// Inner instructions carry full account lists, so they beat log
	// matches: a peeled inner instruction doubles as the cloning target.
	for _, inner := range ev.InnerInstructions[outerIndex] {
		layout, ok := layoutFor(inner.ProgramID)
		if !ok {
			continue
		}
		pool, curve, _, target, err := layout.Extract(inner)
		if err != nil {
			// Router-wrapped calls sometimes truncate account lists;
			// fall through to the log scan rather than failing the trade.
			c.log.WithError(err).WithField("signature", ev.Signature).
				Warn("inner instruction shape mismatch during router peel")
			continue
		}
		trade := *base
		trade.Venue = layout.Venue
		trade.VenueProgramID = layout.ProgramID
		trade.PoolID = pool
		trade.BondingCurve = curve
		trade.Router = router
		trade.Confidence = 100
		return c.applyMigrationOverride(ctx, &trade), target
	}

	// Log scan: the venue program id shows up in invoke lines even when
	// the inner instruction list is unavailable.
	for _, layout := range layouts {
		for _, line := range ev.Logs {
			if strings.Contains(line, layout.ProgramID) {
				trade := *base
				trade.Venue = layout.Venue
				trade.VenueProgramID = layout.ProgramID
				trade.Router = router
				trade.Confidence = 95
				return c.applyMigrationOverride(ctx, &trade), nil
			}
		}
	}

	trade := *base
	trade.Router = router
	trade.Confidence = 0
	trade.Reason = "router " + router + " with no resolvable inner venue"
	c.log.WithFields(logrus.Fields{
		"signature": ev.Signature,
		"router":    router,
	}).Info("router detected but inner venue unresolved")
	return &trade, nil
}

// applyMigrationOverride rebinds bonding-curve trades whose mint has since
// graduated to the AMM. The original venue is kept for audit.
func (c *Classifier) applyMigrationOverride(ctx context.Context, trade *domain.ClassifiedTrade) *domain.ClassifiedTrade {
	if trade.Venue != domain.VenuePumpFun || c.prober == nil {
		return trade
	}

	mint := tradeMint(trade)
	if mint == "" {
		return trade
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return trade
	}
	curve, _, err := derive.BondingCurve(mintKey)
	if err != nil {
		return trade
	}

	exists, err := c.prober.AccountExists(ctx, curve.String())
	if err != nil || exists {
		// Probe failures keep the detected venue; an existing curve means
		// the mint has not migrated.
		return trade
	}

	migrated := *trade
	migrated.OriginVenue = trade.Venue
	migrated.Venue = domain.VenuePumpSwap
	migrated.VenueProgramID = domain.PumpSwapProgramID
	migrated.BondingCurve = ""
	migrated.PoolID = ""

	if c.resolver != nil {
		if pool, err := c.resolver.GetPrimaryPool(ctx, mint); err == nil && pool != nil {
			migrated.PoolID = pool.PoolID
		}
	}

	c.log.WithFields(logrus.Fields{
		"signature": trade.Signature,
		"mint":      mint,
		"from":      trade.Venue,
		"to":        migrated.Venue,
	}).Info("migration override applied")
	return &migrated
}

// tradeMint returns the non-native mint the trade moves.
func tradeMint(trade *domain.ClassifiedTrade) string {
	if trade.OutputMint != "" && trade.OutputMint != domain.WSOL {
		return trade.OutputMint
	}
	if trade.InputMint != "" && trade.InputMint != domain.WSOL {
		return trade.InputMint
	}
	return ""
}
