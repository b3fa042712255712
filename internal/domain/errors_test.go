package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorize(t *testing.T) {
	base := errors.New("rpc timeout")
	err := Categorize(ErrorCategoryNetwork, base)

	assert.Equal(t, ErrorCategoryNetwork, CategoryOf(err))
	assert.True(t, errors.Is(err, base))
	assert.Nil(t, Categorize(ErrorCategoryNetwork, nil))
}

func TestCategorize_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("submit trade: %w", Categorize(ErrorCategoryRejection, errors.New("custom program error 0x1")))

	assert.Equal(t, ErrorCategoryRejection, CategoryOf(err))
}

func TestCategoryOf_DefaultsToNetwork(t *testing.T) {
	assert.Equal(t, ErrorCategoryNetwork, CategoryOf(errors.New("connection reset")))
}

func TestCategorize_PreservesSentinels(t *testing.T) {
	err := Categorize(ErrorCategoryDetection, fmt.Errorf("detect swap: %w", ErrTraderNotFound))

	require.True(t, errors.Is(err, ErrTraderNotFound))
	assert.Equal(t, ErrorCategoryDetection, CategoryOf(err))
}

func TestErrorCategory_Transient(t *testing.T) {
	for _, c := range []ErrorCategory{
		ErrorCategoryDetection,
		ErrorCategoryClassification,
		ErrorCategoryDerivation,
		ErrorCategoryEncoding,
		ErrorCategoryResource,
		ErrorCategoryRejection,
	} {
		assert.False(t, c.Transient(), string(c))
	}
	assert.True(t, ErrorCategoryNetwork.Transient())
}

func TestErrorCategory_UserMessage(t *testing.T) {
	assert.Contains(t, ErrorCategoryResource.UserMessage(), "balance")
	assert.Contains(t, ErrorCategoryNetwork.UserMessage(), "network")
	assert.Contains(t, ErrorCategoryRejection.UserMessage(), "rejected")
	assert.Equal(t, "trade could not be copied", ErrorCategoryEncoding.UserMessage())
}

func TestClassifiedTrade_Copyable(t *testing.T) {
	trade := &ClassifiedTrade{
		SwapDetection: SwapDetection{IsSwap: true},
		Venue:         VenuePumpFun,
	}
	assert.True(t, trade.Copyable())

	unresolved := &ClassifiedTrade{
		SwapDetection: SwapDetection{IsSwap: true},
		Venue:         VenueUnknown,
		Router:        "jupiter",
	}
	assert.False(t, unresolved.Copyable())

	var nilTrade *ClassifiedTrade
	assert.False(t, nilTrade.Copyable())
	assert.False(t, (&ClassifiedTrade{Venue: VenuePumpFun}).Copyable())
}

func TestTradeState_Terminal(t *testing.T) {
	assert.False(t, TradeStatePending.Terminal())
	assert.False(t, TradeStateExecuting.Terminal())
	assert.True(t, TradeStateCompleted.Terminal())
	assert.True(t, TradeStateFailed.Terminal())
	assert.True(t, TradeStateCancelled.Terminal())
}
