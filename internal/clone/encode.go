package clone

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
)

// raydiumSwapBaseIn is the single-byte tag for Raydium AMM v4's
// fixed-input swap.
const raydiumSwapBaseIn = 9

// anchorDiscriminator returns the 8-byte instruction tag Anchor programs
// derive from the instruction name.
func anchorDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:8]
}

// encodePayload builds the venue's swap payload with the reconstructed
// amounts in place of the original trader's.
//
// Amount semantics per venue:
//
//	pumpfun buy     amount = expected tokens out, maxSolCost = spend cap
//	pumpfun sell    amount = tokens in, minSolOutput = proceeds floor
//	pumpswap buy    baseAmountOut, maxQuoteAmountIn
//	pumpswap sell   baseAmountIn, minQuoteAmountOut
//	raydium_v4      tag 9, amountIn, minimumAmountOut
func encodePayload(venue domain.Venue, tradeType domain.TradeType, scaledIn, minOut, maxIn uint64) ([]byte, error) {
	switch venue {
	case domain.VenuePumpFun, domain.VenuePumpSwap:
		return encodeAnchorSwap(tradeType, scaledIn, minOut, maxIn)
	case domain.VenueRaydiumV4:
		return encodeRaydiumSwap(scaledIn, minOut)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedVenue, venue)
	}
}

// encodeAnchorSwap serializes the buy/sell payload shared by the pump.fun
// bonding curve and its AMM. Both take (amount, limit) as little-endian
// u64 after the discriminator; only the limit's direction differs.
func encodeAnchorSwap(tradeType domain.TradeType, scaledIn, minOut, maxIn uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)

	switch tradeType {
	case domain.TradeTypeBuy, domain.TradeTypeTokenForToken:
		buf.Write(anchorDiscriminator("buy"))
		if err := enc.WriteUint64(minOut, bin.LE); err != nil {
			return nil, err
		}
		if err := enc.WriteUint64(maxIn, bin.LE); err != nil {
			return nil, err
		}
	case domain.TradeTypeSell:
		buf.Write(anchorDiscriminator("sell"))
		if err := enc.WriteUint64(scaledIn, bin.LE); err != nil {
			return nil, err
		}
		if err := enc.WriteUint64(minOut, bin.LE); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported trade type %q", tradeType)
	}

	return buf.Bytes(), nil
}

// encodeRaydiumSwap serializes the swap-base-in payload: one tag byte and
// two little-endian u64 amounts.
func encodeRaydiumSwap(amountIn, minAmountOut uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)

	if err := enc.WriteUint8(raydiumSwapBaseIn); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(amountIn, bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(minAmountOut, bin.LE); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
