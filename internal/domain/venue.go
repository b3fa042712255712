package domain

// Venue identifies the decentralized exchange program that executed a swap.
// The set is closed: adding a venue means adding a constant here plus one
// payload encoder implementation, never touching dispatch sites.
type Venue string

const (
	// VenueUnknown marks trades whose executing program could not be resolved.
	VenueUnknown Venue = "unknown"
	// VenuePumpFun is the pump.fun bonding-curve program.
	VenuePumpFun Venue = "pumpfun"
	// VenuePumpSwap is the pump.fun AMM tokens graduate to.
	VenuePumpSwap Venue = "pumpswap"
	// VenueRaydiumV4 is the Raydium AMM v4 program.
	VenueRaydiumV4 Venue = "raydium_v4"
)

// Known program IDs.
const (
	// PumpFunProgramID is the pump.fun bonding-curve program ID.
	PumpFunProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	// PumpSwapProgramID is the pump.fun AMM program ID.
	PumpSwapProgramID = "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"
	// RaydiumV4ProgramID is the Raydium AMM v4 program ID.
	RaydiumV4ProgramID = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

	// JupiterProgramID is the Jupiter v6 aggregator program ID.
	JupiterProgramID = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
	// OKXRouterProgramID is the OKX DEX aggregation router program ID.
	OKXRouterProgramID = "6m2CDdhRgxpH4WjvdzxAYbGxwdGUz5MziiL5jek2kBma"

	// TokenProgramID is the SPL token program ID.
	TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	// AssociatedTokenProgramID is the associated token account program ID.
	AssociatedTokenProgramID = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	// SystemProgramID is the system program ID.
	SystemProgramID = "11111111111111111111111111111111"

	// WSOL is the wrapped SOL mint address.
	WSOL = "So11111111111111111111111111111111111111112"
)

// ProgramID returns the on-chain program ID a venue's swap instructions
// target, or "" for VenueUnknown.
func (v Venue) ProgramID() string {
	switch v {
	case VenuePumpFun:
		return PumpFunProgramID
	case VenuePumpSwap:
		return PumpSwapProgramID
	case VenueRaydiumV4:
		return RaydiumV4ProgramID
	default:
		return ""
	}
}

// RouterName returns a human label for a known aggregator program ID,
// or "" when the program is not a recognized router.
func RouterName(programID string) string {
	switch programID {
	case JupiterProgramID:
		return "jupiter"
	case OKXRouterProgramID:
		return "okx"
	default:
		return ""
	}
}
