// Package derive computes program-derived addresses with the ledger's
// canonical algorithm. The derivation must match the on-chain programs
// byte for byte or every downstream instruction is rejected on submission.
package derive

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
)

// Seed constraints enforced by the runtime.
const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

// pdaMarker is appended to the hash input to keep derived addresses out
// of the signature domain.
var pdaMarker = []byte("ProgramDerivedAddress")

var (
	// ErrSeedTooLong is returned when any seed exceeds MaxSeedLength bytes.
	ErrSeedTooLong = errors.New("seed exceeds 32 bytes")
	// ErrTooManySeeds is returned when more than MaxSeeds seeds are given.
	ErrTooManySeeds = errors.New("too many seeds")
	// ErrNoViableBump is returned when every bump value yields an
	// on-curve point. Statistically this does not happen.
	ErrNoViableBump = errors.New("unable to find a viable bump seed")
)

// Derive finds the program-derived address for the given seeds: it hashes
// seeds‖bump‖programID‖marker with bump descending from 255 and returns
// the first off-curve result together with the bump that produced it.
func Derive(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	if len(seeds) > MaxSeeds {
		return solana.PublicKey{}, 0, ErrTooManySeeds
	}
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return solana.PublicKey{}, 0, ErrSeedTooLong
		}
	}

	for bump := uint8(255); bump > 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{bump})
		h.Write(programID[:])
		h.Write(pdaMarker)

		var addr solana.PublicKey
		copy(addr[:], h.Sum(nil))

		if !isOnCurve(addr[:]) {
			return addr, bump, nil
		}
	}

	return solana.PublicKey{}, 0, ErrNoViableBump
}

// isOnCurve reports whether the 32 bytes decode to a valid ed25519 point.
// Derived addresses must not: an on-curve address could have a private key.
func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

var (
	tokenProgram      = solana.MustPublicKeyFromBase58(domain.TokenProgramID)
	ataProgram        = solana.MustPublicKeyFromBase58(domain.AssociatedTokenProgramID)
	pumpFunProgram    = solana.MustPublicKeyFromBase58(domain.PumpFunProgramID)
	pumpSwapProgram   = solana.MustPublicKeyFromBase58(domain.PumpSwapProgramID)
)

// AssociatedTokenAccount derives the associated token account for an
// owner and mint. The seed set (owner, token program, mint) is fixed by
// the associated-token program.
func AssociatedTokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	seeds := [][]byte{owner[:], tokenProgram[:], mint[:]}
	addr, bump, err := Derive(seeds, ataProgram)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive associated token account: %w", err)
	}
	return addr, bump, nil
}

// BondingCurve derives the pump.fun bonding-curve account for a mint.
func BondingCurve(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	seeds := [][]byte{[]byte("bonding-curve"), mint[:]}
	addr, bump, err := Derive(seeds, pumpFunProgram)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive bonding curve: %w", err)
	}
	return addr, bump, nil
}

// AssociatedBondingCurve derives the bonding curve's own token account
// for the mint: the curve account is the owner side of a plain ATA.
func AssociatedBondingCurve(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	curve, _, err := BondingCurve(mint)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	return AssociatedTokenAccount(curve, mint)
}

// PumpFunGlobal derives the pump.fun global config account.
func PumpFunGlobal() (solana.PublicKey, uint8, error) {
	return Derive([][]byte{[]byte("global")}, pumpFunProgram)
}

// PumpFunEventAuthority derives the pump.fun event authority account.
func PumpFunEventAuthority() (solana.PublicKey, uint8, error) {
	return Derive([][]byte{[]byte("__event_authority")}, pumpFunProgram)
}

// PumpSwapGlobalConfig derives the pump.fun AMM global config account.
func PumpSwapGlobalConfig() (solana.PublicKey, uint8, error) {
	return Derive([][]byte{[]byte("global_config")}, pumpSwapProgram)
}

// PumpSwapEventAuthority derives the pump.fun AMM event authority account.
func PumpSwapEventAuthority() (solana.PublicKey, uint8, error) {
	return Derive([][]byte{[]byte("__event_authority")}, pumpSwapProgram)
}
