package derive

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive_Deterministic(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	seeds := [][]byte{[]byte("bonding-curve"), make([]byte, 32)}

	addr1, bump1, err := Derive(seeds, program)
	require.NoError(t, err)

	addr2, bump2, err := Derive(seeds, program)
	require.NoError(t, err)

	assert.Equal(t, addr1, addr2, "same seeds must derive the same address")
	assert.Equal(t, bump1, bump2, "same seeds must derive the same bump")
}

func TestDerive_OffCurve(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")

	// Many distinct seed sets; every derived address must be off-curve.
	for i := byte(0); i < 50; i++ {
		seed := make([]byte, 32)
		seed[0] = i
		addr, _, err := Derive([][]byte{seed}, program)
		require.NoError(t, err)
		assert.False(t, isOnCurve(addr[:]), "derived address %s is on-curve", addr)
	}
}

func TestDerive_DistinctPrograms(t *testing.T) {
	seeds := [][]byte{[]byte("global")}
	a, _, err := Derive(seeds, pumpFunProgram)
	require.NoError(t, err)
	b, _, err := Derive(seeds, pumpSwapProgram)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "same seeds under different programs must differ")
}

func TestDerive_SeedConstraints(t *testing.T) {
	program := pumpFunProgram

	_, _, err := Derive([][]byte{make([]byte, 33)}, program)
	assert.ErrorIs(t, err, ErrSeedTooLong)

	tooMany := make([][]byte, MaxSeeds+1)
	for i := range tooMany {
		tooMany[i] = []byte{byte(i)}
	}
	_, _, err = Derive(tooMany, program)
	assert.ErrorIs(t, err, ErrTooManySeeds)
}

// The derivation must agree byte for byte with the reference library
// implementation, which itself matches the on-chain runtime.
func TestDerive_MatchesReferenceImplementation(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

	for i := byte(1); i <= 20; i++ {
		mint := solana.PublicKey{}
		mint[31] = i

		seeds := [][]byte{[]byte("bonding-curve"), mint[:]}
		got, gotBump, err := Derive(seeds, program)
		require.NoError(t, err)

		want, wantBump, err := solana.FindProgramAddress(seeds, program)
		require.NoError(t, err)

		assert.Equal(t, want, got)
		assert.Equal(t, wantBump, gotBump)
	}
}

func TestAssociatedTokenAccount_MatchesReferenceImplementation(t *testing.T) {
	owner := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	for i := byte(1); i <= 10; i++ {
		var mint solana.PublicKey
		mint[0] = i

		got, _, err := AssociatedTokenAccount(owner, mint)
		require.NoError(t, err)

		want, _, err := solana.FindAssociatedTokenAddress(owner, mint)
		require.NoError(t, err)

		assert.Equal(t, want, got)
	}
}

func TestBondingCurve_UsesCurveAsATAOwner(t *testing.T) {
	var mint solana.PublicKey
	mint[5] = 7

	curve, _, err := BondingCurve(mint)
	require.NoError(t, err)

	assoc, _, err := AssociatedBondingCurve(mint)
	require.NoError(t, err)

	direct, _, err := AssociatedTokenAccount(curve, mint)
	require.NoError(t, err)
	assert.Equal(t, direct, assoc)
}
