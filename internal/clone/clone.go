// Package clone reconstructs an observed swap instruction for a different
// signer: scaled amounts, the follower's accounts in place of the
// trader's, and any token-account creation prepended.
package clone

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/happy2099/zap-mono-sub002/internal/derive"
	"github.com/happy2099/zap-mono-sub002/internal/domain"
	"github.com/happy2099/zap-mono-sub002/internal/metadata"
)

const (
	// pumpFunFeeRecipient receives the pump.fun protocol fee on every
	// bonding-curve trade.
	pumpFunFeeRecipient = "CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM"
	rentSysvar          = "SysvarRent111111111111111111111111111111111"

	bpsDenominator = 10_000
)

// AccountProber checks whether accounts exist on chain.
type AccountProber interface {
	AccountExists(ctx context.Context, address string) (bool, error)
}

// QuoteClient prices a swap. A nil pool or client falls back to scaling
// the observed output.
type QuoteClient interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amountIn uint64) (*metadata.Quote, error)
}

// Cloner reconstructs classified trades for follower wallets.
type Cloner struct {
	prober AccountProber
	quotes QuoteClient
	log    *logrus.Logger
}

// NewCloner creates a Cloner. quotes may be nil, in which case minimum
// outputs are derived from the observed trade alone.
func NewCloner(prober AccountProber, quotes QuoteClient, log *logrus.Logger) *Cloner {
	if log == nil {
		log = logrus.New()
	}
	return &Cloner{prober: prober, quotes: quotes, log: log}
}

// Clone rebuilds the trade's swap instruction for wallet under the user's
// sizing policy. The returned set orders account creation before the swap;
// callers must not reorder it.
func (c *Cloner) Clone(ctx context.Context, trade *domain.ClassifiedTrade, target *domain.CloningTarget, wallet solana.PublicKey, policy domain.UserPolicy) (*domain.ClonedInstructionSet, error) {
	if !trade.Copyable() {
		return nil, domain.Categorize(domain.ErrorCategoryEncoding,
			fmt.Errorf("trade %s is not copyable: %s", trade.Signature, trade.Reason))
	}

	if target == nil {
		synthesized, err := c.synthesizePumpFunTarget(trade)
		if err != nil {
			return nil, err
		}
		target = synthesized
	}

	scaledIn := scaleFloor(trade.InputAmountRaw, policy.ScaleFactor)
	if scaledIn == 0 {
		return nil, domain.Categorize(domain.ErrorCategoryEncoding,
			fmt.Errorf("scale factor %.4f reduces input %d to zero", policy.ScaleFactor, trade.InputAmountRaw))
	}

	minOut, err := c.minimumOutput(ctx, trade, scaledIn, policy)
	if err != nil {
		return nil, err
	}
	maxIn := applyBps(scaledIn, bpsDenominator+int64(policy.SlippageBps))

	payload, err := encodePayload(trade.Venue, trade.Type, scaledIn, minOut, maxIn)
	if err != nil {
		return nil, domain.Categorize(domain.ErrorCategoryEncoding, err)
	}

	swapAccounts, err := c.remapAccounts(trade, target, wallet)
	if err != nil {
		return nil, err
	}

	set := &domain.ClonedInstructionSet{
		Platform:          trade.Venue,
		ScaledInputAmount: scaledIn,
		MinOutputAmount:   minOut,
		AppliedSlippage:   policy.SlippageBps,
	}

	creates, err := c.ensureTokenAccounts(ctx, trade, wallet)
	if err != nil {
		return nil, err
	}
	set.Instructions = append(set.Instructions, creates...)
	set.Instructions = append(set.Instructions, domain.ClonedInstruction{
		ProgramID: target.ProgramID,
		Accounts:  swapAccounts,
		Data:      payload,
	})

	c.log.WithFields(logrus.Fields{
		"signature": trade.Signature,
		"venue":     trade.Venue,
		"scaled_in": scaledIn,
		"min_out":   minOut,
	}).Debug("trade reconstructed")
	return set, nil
}

// minimumOutput computes the slippage floor, preferring a live quote for
// the scaled input over proportional scaling of the observed output.
func (c *Cloner) minimumOutput(ctx context.Context, trade *domain.ClassifiedTrade, scaledIn uint64, policy domain.UserPolicy) (uint64, error) {
	expected := scaleFloor(trade.OutputAmountRaw, policy.ScaleFactor)

	if c.quotes != nil {
		quote, err := c.quotes.GetQuote(ctx, trade.InputMint, trade.OutputMint, scaledIn)
		if err != nil {
			// Quotes are advisory; fall back to the observed ratio.
			c.log.WithError(err).WithField("signature", trade.Signature).
				Warn("quote lookup failed, scaling observed output")
		} else if quote != nil {
			expected = quote.OutAmount
		}
	}

	minOut := applyBps(expected, bpsDenominator-int64(policy.SlippageBps))
	if minOut == 0 && expected > 0 {
		minOut = 1
	}
	return minOut, nil
}

// remapAccounts substitutes the follower for the original trader in the
// target's account list. Every signer flag except the follower wallet's
// is cleared.
func (c *Cloner) remapAccounts(trade *domain.ClassifiedTrade, target *domain.CloningTarget, wallet solana.PublicKey) ([]domain.AccountMeta, error) {
	trader, err := solana.PublicKeyFromBase58(trade.Trader)
	if err != nil {
		return nil, domain.Categorize(domain.ErrorCategoryEncoding,
			fmt.Errorf("invalid trader address %q: %w", trade.Trader, err))
	}

	// Map the trader's token accounts to the follower's for every mint the
	// trade touches.
	ataSwap := make(map[string]string, 2)
	for _, mint := range tradeMints(trade) {
		mintKey, err := solana.PublicKeyFromBase58(mint)
		if err != nil {
			return nil, domain.Categorize(domain.ErrorCategoryDerivation,
				fmt.Errorf("invalid mint %q: %w", mint, err))
		}
		traderATA, _, err := derive.AssociatedTokenAccount(trader, mintKey)
		if err != nil {
			return nil, domain.Categorize(domain.ErrorCategoryDerivation, err)
		}
		followerATA, _, err := derive.AssociatedTokenAccount(wallet, mintKey)
		if err != nil {
			return nil, domain.Categorize(domain.ErrorCategoryDerivation, err)
		}
		ataSwap[traderATA.String()] = followerATA.String()
	}

	walletAddr := wallet.String()
	out := make([]domain.AccountMeta, len(target.Accounts))
	for i, acc := range target.Accounts {
		mapped := acc
		switch {
		case acc.Address == trade.Trader:
			mapped.Address = walletAddr
		default:
			if follower, ok := ataSwap[acc.Address]; ok {
				mapped.Address = follower
			}
		}
		mapped.IsSigner = mapped.Address == walletAddr && acc.IsSigner
		out[i] = mapped
	}
	return out, nil
}

// ensureTokenAccounts returns create-idempotent instructions for any
// follower token account the swap needs that does not exist yet.
func (c *Cloner) ensureTokenAccounts(ctx context.Context, trade *domain.ClassifiedTrade, wallet solana.PublicKey) ([]domain.ClonedInstruction, error) {
	var creates []domain.ClonedInstruction
	for _, mint := range tradeMints(trade) {
		mintKey, err := solana.PublicKeyFromBase58(mint)
		if err != nil {
			return nil, domain.Categorize(domain.ErrorCategoryDerivation,
				fmt.Errorf("invalid mint %q: %w", mint, err))
		}
		ata, _, err := derive.AssociatedTokenAccount(wallet, mintKey)
		if err != nil {
			return nil, domain.Categorize(domain.ErrorCategoryDerivation, err)
		}

		if c.prober != nil {
			exists, err := c.prober.AccountExists(ctx, ata.String())
			if err != nil {
				return nil, domain.Categorize(domain.ErrorCategoryNetwork,
					fmt.Errorf("probe token account %s: %w", ata, err))
			}
			if exists {
				continue
			}
		}

		creates = append(creates, createIdempotentATA(wallet, ata, mintKey))
	}
	return creates, nil
}

// createIdempotentATA builds the associated-token-program instruction that
// creates the account if and only if it is missing.
func createIdempotentATA(wallet, ata, mint solana.PublicKey) domain.ClonedInstruction {
	return domain.ClonedInstruction{
		ProgramID: domain.AssociatedTokenProgramID,
		Accounts: []domain.AccountMeta{
			{Address: wallet.String(), IsSigner: true, IsWritable: true},
			{Address: ata.String(), IsWritable: true},
			{Address: wallet.String()},
			{Address: mint.String()},
			{Address: domain.SystemProgramID},
			{Address: domain.TokenProgramID},
		},
		Data: []byte{1}, // CreateIdempotent
	}
}

// synthesizePumpFunTarget builds the canonical bonding-curve account list
// when classification resolved the venue without isolating an instruction.
// Only pump.fun allows this: its accounts derive entirely from the mint.
func (c *Cloner) synthesizePumpFunTarget(trade *domain.ClassifiedTrade) (*domain.CloningTarget, error) {
	if trade.Venue != domain.VenuePumpFun {
		return nil, domain.Categorize(domain.ErrorCategoryEncoding,
			fmt.Errorf("%w: venue %s", domain.ErrMissingCloningTarget, trade.Venue))
	}

	mint := nonNativeMint(trade)
	if mint == "" {
		return nil, domain.Categorize(domain.ErrorCategoryEncoding,
			fmt.Errorf("%w: no token mint on trade %s", domain.ErrMissingCloningTarget, trade.Signature))
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, domain.Categorize(domain.ErrorCategoryDerivation,
			fmt.Errorf("invalid mint %q: %w", mint, err))
	}
	trader, err := solana.PublicKeyFromBase58(trade.Trader)
	if err != nil {
		return nil, domain.Categorize(domain.ErrorCategoryDerivation,
			fmt.Errorf("invalid trader address %q: %w", trade.Trader, err))
	}

	global, _, err := derive.PumpFunGlobal()
	if err != nil {
		return nil, domain.Categorize(domain.ErrorCategoryDerivation, err)
	}
	curve, _, err := derive.BondingCurve(mintKey)
	if err != nil {
		return nil, domain.Categorize(domain.ErrorCategoryDerivation, err)
	}
	curveATA, _, err := derive.AssociatedBondingCurve(mintKey)
	if err != nil {
		return nil, domain.Categorize(domain.ErrorCategoryDerivation, err)
	}
	traderATA, _, err := derive.AssociatedTokenAccount(trader, mintKey)
	if err != nil {
		return nil, domain.Categorize(domain.ErrorCategoryDerivation, err)
	}
	eventAuthority, _, err := derive.PumpFunEventAuthority()
	if err != nil {
		return nil, domain.Categorize(domain.ErrorCategoryDerivation, err)
	}

	return &domain.CloningTarget{
		ProgramID: domain.PumpFunProgramID,
		Accounts: []domain.AccountMeta{
			{Address: global.String()},
			{Address: pumpFunFeeRecipient, IsWritable: true},
			{Address: mint},
			{Address: curve.String(), IsWritable: true},
			{Address: curveATA.String(), IsWritable: true},
			{Address: traderATA.String(), IsWritable: true},
			{Address: trade.Trader, IsSigner: true, IsWritable: true},
			{Address: domain.SystemProgramID},
			{Address: domain.TokenProgramID},
			{Address: rentSysvar},
			{Address: eventAuthority.String()},
			{Address: domain.PumpFunProgramID},
		},
	}, nil
}

// scaleFloor multiplies an amount by a factor and truncates. Exact decimal
// arithmetic keeps large lamport amounts free of float drift.
func scaleFloor(amount uint64, factor float64) uint64 {
	if factor <= 0 {
		return 0
	}
	scaled := decimal.NewFromUint64(amount).Mul(decimal.NewFromFloat(factor)).Floor()
	if scaled.Sign() <= 0 {
		return 0
	}
	return scaled.BigInt().Uint64()
}

// applyBps scales an amount by numerBps/10000, truncating.
func applyBps(amount uint64, numerBps int64) uint64 {
	if numerBps <= 0 {
		return 0
	}
	scaled := decimal.NewFromUint64(amount).
		Mul(decimal.NewFromInt(numerBps)).
		Div(decimal.NewFromInt(bpsDenominator)).
		Floor()
	return scaled.BigInt().Uint64()
}

// tradeMints lists the non-native mints the trade moves.
func tradeMints(trade *domain.ClassifiedTrade) []string {
	var mints []string
	if trade.InputMint != "" && trade.InputMint != domain.WSOL {
		mints = append(mints, trade.InputMint)
	}
	if trade.OutputMint != "" && trade.OutputMint != domain.WSOL && trade.OutputMint != trade.InputMint {
		mints = append(mints, trade.OutputMint)
	}
	return mints
}

// nonNativeMint returns the token side of a native-for-token trade.
func nonNativeMint(trade *domain.ClassifiedTrade) string {
	mints := tradeMints(trade)
	if len(mints) == 0 {
		return ""
	}
	return mints[0]
}
