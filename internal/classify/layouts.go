package classify

import (
	"fmt"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
)

// Layout describes where a venue's swap instruction keeps its interesting
// accounts. Field indices are per-venue contracts; each layout is
// validated against the expected account count before any indexing, so a
// transaction with an unexpected shape fails loudly instead of reading
// past the end.
type Layout struct {
	Venue       domain.Venue
	ProgramID   string
	MinAccounts int

	// PoolIndex locates the AMM pool account, -1 when the venue has none.
	PoolIndex int
	// CurveIndex locates the bonding-curve account, -1 when none.
	CurveIndex int
	// MintIndex locates the traded mint, -1 when not carried as an account.
	MintIndex int
}

// Venue account layouts.
//
// pump.fun buy/sell:
//	0: global config
//	1: fee recipient
//	2: mint
//	3: bonding curve
//	4: associated bonding curve (curve's token account)
//	5: user's associated token account
//	6: user
//	7: system program
//	8: token program
//	9: creator vault
//	10: event authority
//	11: program
//
// pump.fun AMM buy/sell:
//	0: pool
//	1: user
//	2: global config
//	3: base mint
//	4: quote mint
//	5..16: token accounts, fee accounts, programs
//
// Raydium AMM v4 swapBaseIn/swapBaseOut:
//	0: token program
//	1: AMM id (pool)
//	2: AMM authority
//	3..14: open orders, vaults, serum accounts
//	15: user source token account
//	16: user destination token account
//	17: user owner
var layouts = []Layout{
	{
		Venue:       domain.VenuePumpFun,
		ProgramID:   domain.PumpFunProgramID,
		MinAccounts: 12,
		PoolIndex:   -1,
		CurveIndex:  3,
		MintIndex:   2,
	},
	{
		Venue:       domain.VenuePumpSwap,
		ProgramID:   domain.PumpSwapProgramID,
		MinAccounts: 17,
		PoolIndex:   0,
		CurveIndex:  -1,
		MintIndex:   3,
	},
	{
		Venue:       domain.VenueRaydiumV4,
		ProgramID:   domain.RaydiumV4ProgramID,
		MinAccounts: 17,
		PoolIndex:   1,
		CurveIndex:  -1,
		MintIndex:   -1,
	},
}

// layoutFor returns the layout for a program id, if the program is a
// known executable venue.
func layoutFor(programID string) (Layout, bool) {
	for _, l := range layouts {
		if l.ProgramID == programID {
			return l, true
		}
	}
	return Layout{}, false
}

// Extract validates the instruction against the layout and pulls out the
// venue-specific accounts together with the cloning target.
func (l Layout) Extract(instr domain.Instruction) (pool, curve, mint string, target *domain.CloningTarget, err error) {
	if len(instr.Accounts) < l.MinAccounts {
		return "", "", "", nil, domain.Categorize(domain.ErrorCategoryClassification,
			fmt.Errorf("%w: %s expects at least %d accounts, got %d",
				domain.ErrVenueLayoutMismatch, l.Venue, l.MinAccounts, len(instr.Accounts)))
	}

	if l.PoolIndex >= 0 {
		pool = instr.Accounts[l.PoolIndex].Address
	}
	if l.CurveIndex >= 0 {
		curve = instr.Accounts[l.CurveIndex].Address
	}
	if l.MintIndex >= 0 {
		mint = instr.Accounts[l.MintIndex].Address
	}

	accounts := make([]domain.AccountMeta, len(instr.Accounts))
	copy(accounts, instr.Accounts)
	payload := make([]byte, len(instr.Data))
	copy(payload, instr.Data)

	target = &domain.CloningTarget{
		ProgramID:  instr.ProgramID,
		Accounts:   accounts,
		RawPayload: payload,
	}
	return pool, curve, mint, target, nil
}
