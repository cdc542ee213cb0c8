package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrailingStopSpawnsAfterFullFill(t *testing.T) {
	b := newTestBook(t)
	_, err := b.InsertLimitOrder(Sell, px(1.00), 100, nil, &AdvancedTicket{})
	require.NoError(t, err)

	ticket := &AdvancedTicket{
		Condition: TrailingStop,
		Trigger:   FillFull,
		TrailingParams: &OrderParameters{
			ByTicks: true, Side: Buy, Size: 100, NTicks: 10,
		},
	}
	_, err = b.InsertLimitOrder(Buy, px(1.00), 100, nil, ticket)
	require.NoError(t, err)

	assert.Len(t, b.trailingBuy, 1)
}

func TestTrailingStopTightensButNeverLoosens(t *testing.T) {
	b := newTestBook(t)
	_, err := b.InsertLimitOrder(Sell, px(1.00), 100, nil, &AdvancedTicket{})
	require.NoError(t, err)
	ticket := &AdvancedTicket{
		Condition: TrailingStop,
		Trigger:   FillFull,
		TrailingParams: &OrderParameters{
			ByTicks: true, Side: Buy, Size: 100, NTicks: 10,
		},
	}
	_, err = b.InsertLimitOrder(Buy, px(1.00), 100, nil, ticket)
	require.NoError(t, err)

	var stopID OrderID
	for id := range b.trailingBuy {
		stopID = id
	}
	infoBefore, ok := b.GetOrderInfo(stopID)
	require.True(t, ok)

	// a sell-side trade moves last toward the bid, tightening a resting
	// buy-side trailing stop downward
	_, err = b.InsertLimitOrder(Buy, px(0.50), 10, nil, &AdvancedTicket{})
	require.NoError(t, err)
	_, err = b.InsertMarketOrder(Sell, 10, nil, &AdvancedTicket{})
	require.NoError(t, err)

	infoAfter, ok := b.GetOrderInfo(stopID)
	require.True(t, ok)
	assert.True(t, infoAfter.Stop.Less(infoBefore.Stop))

	// last rises back up via another sell-side trade against a higher
	// resting bid: the stop must not loosen back upward
	_, err = b.InsertLimitOrder(Buy, px(0.60), 100, nil, &AdvancedTicket{})
	require.NoError(t, err)
	_, err = b.InsertMarketOrder(Sell, 10, nil, &AdvancedTicket{})
	require.NoError(t, err)

	infoFinal, ok := b.GetOrderInfo(stopID)
	require.True(t, ok)
	assert.Equal(t, infoAfter.Stop, infoFinal.Stop)
}

func TestRemoveFromTrailingSetsOnCancel(t *testing.T) {
	b := newTestBook(t)
	_, err := b.InsertLimitOrder(Sell, px(1.00), 100, nil, &AdvancedTicket{})
	require.NoError(t, err)
	ticket := &AdvancedTicket{
		Condition: TrailingStop,
		Trigger:   FillFull,
		TrailingParams: &OrderParameters{
			ByTicks: true, Side: Buy, Size: 100, NTicks: 10,
		},
	}
	_, err = b.InsertLimitOrder(Buy, px(1.00), 100, nil, ticket)
	require.NoError(t, err)
	require.Len(t, b.trailingBuy, 1)

	var stopID OrderID
	for id := range b.trailingBuy {
		stopID = id
	}
	require.True(t, b.PullOrder(stopID))
	assert.Empty(t, b.trailingBuy)
}
