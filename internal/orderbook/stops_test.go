package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopRestsBelowLastUntriggered(t *testing.T) {
	b := newTestBook(t)
	_, err := b.InsertLimitOrder(Sell, px(1.00), 10, nil, &AdvancedTicket{})
	require.NoError(t, err)
	_, err = b.InsertMarketOrder(Buy, 10, nil, &AdvancedTicket{})
	require.NoError(t, err)

	id, err := b.InsertStopOrder(Sell, px(0.50), false, Price{}, 5, nil, &AdvancedTicket{})
	require.NoError(t, err)
	_, resting := b.GetOrderInfo(id)
	assert.True(t, resting)
}

func TestStopToLimitConvertsOnTrigger(t *testing.T) {
	b := newTestBook(t)
	_, err := b.InsertLimitOrder(Sell, px(1.00), 10, nil, &AdvancedTicket{})
	require.NoError(t, err)
	_, err = b.InsertLimitOrder(Sell, px(1.05), 50, nil, &AdvancedTicket{})
	require.NoError(t, err)
	_, err = b.InsertMarketOrder(Buy, 10, nil, &AdvancedTicket{})
	require.NoError(t, err)

	var msgs []recordedCallback
	id, err := b.InsertStopOrder(Buy, px(1.00), true, px(1.05), 20, collectCallback(&msgs), &AdvancedTicket{})
	require.NoError(t, err)
	_ = id

	_, err = b.InsertMarketOrder(Buy, 5, nil, &AdvancedTicket{})
	require.NoError(t, err)

	foundConversion := false
	for _, m := range msgs {
		if m.msg == MsgStopToLimit {
			foundConversion = true
		}
	}
	assert.True(t, foundConversion)
}

func TestScanStopsNoopWithoutLastPrice(t *testing.T) {
	b := newTestBook(t)
	_, err := b.InsertStopOrder(Buy, px(1.00), false, Price{}, 10, nil, &AdvancedTicket{})
	require.NoError(t, err)
	assert.NotPanics(t, func() { b.scanStops() })
}

func TestShrinkStopBoundsIfEmptyResetsToSentinels(t *testing.T) {
	b := newTestBook(t)
	id, err := b.InsertStopOrder(Buy, px(1.00), false, Price{}, 10, nil, &AdvancedTicket{})
	require.NoError(t, err)
	require.True(t, b.PullOrder(id))

	b.mu.Lock()
	lo, hi := b.lowBuyStop, b.highBuyStop
	b.mu.Unlock()
	assert.Equal(t, noLow, lo)
	assert.Equal(t, noHigh, hi)
}
