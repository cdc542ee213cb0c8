package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertLimitOrderAssignsMonotonicIDs(t *testing.T) {
	b := newTestBook(t)
	id1, err := b.InsertLimitOrder(Buy, px(1.00), 10, nil, &AdvancedTicket{})
	require.NoError(t, err)
	id2, err := b.InsertLimitOrder(Buy, px(1.01), 10, nil, &AdvancedTicket{})
	require.NoError(t, err)
	assert.Less(t, id1, id2)
	assert.Equal(t, id2, b.LastID())
}

func TestInsertLimitOrderRejectsZeroSize(t *testing.T) {
	b := newTestBook(t)
	_, err := b.InsertLimitOrder(Buy, px(1.00), 0, nil, &AdvancedTicket{})
	assert.Error(t, err)
}

func TestPullOrderRemovesRestingOrder(t *testing.T) {
	b := newTestBook(t)
	id, err := b.InsertLimitOrder(Buy, px(1.00), 10, nil, &AdvancedTicket{})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), b.BidSize())

	assert.True(t, b.PullOrder(id))
	_, resting := b.BidPrice()
	assert.False(t, resting)

	assert.False(t, b.PullOrder(id))
}

func TestReplaceWithLimitOrderMovesPrice(t *testing.T) {
	b := newTestBook(t)
	id, err := b.InsertLimitOrder(Buy, px(1.00), 10, nil, &AdvancedTicket{})
	require.NoError(t, err)

	newID, err := b.ReplaceWithLimitOrder(id, Buy, px(1.05), 20, nil, &AdvancedTicket{})
	require.NoError(t, err)
	require.NotZero(t, newID)

	bid, ok := b.BidPrice()
	require.True(t, ok)
	assert.Equal(t, px(1.05), bid)
	assert.Equal(t, uint64(20), b.BidSize())
}

func TestReplaceWithLimitOrderNoopWhenOriginalMissing(t *testing.T) {
	b := newTestBook(t)
	newID, err := b.ReplaceWithLimitOrder(OrderID(9999), Buy, px(1.00), 10, nil, &AdvancedTicket{})
	require.NoError(t, err)
	assert.Zero(t, newID)
}

func TestInsertStopOrderRestsUntriggered(t *testing.T) {
	b := newTestBook(t)
	_, err := b.InsertLimitOrder(Sell, px(1.00), 100, nil, &AdvancedTicket{})
	require.NoError(t, err)
	_, err = b.InsertMarketOrder(Buy, 10, nil, &AdvancedTicket{})
	require.NoError(t, err)

	id, err := b.InsertStopOrder(Buy, px(1.05), false, Price{}, 50, nil, &AdvancedTicket{})
	require.NoError(t, err)
	info, ok := b.GetOrderInfo(id)
	require.True(t, ok)
	assert.Equal(t, Stop, info.Type)
	assert.Equal(t, uint64(50), info.Size)
}

func TestGrowBookAboveExtendsMaxPrice(t *testing.T) {
	b := newTestBook(t)
	require.NoError(t, b.GrowBookAbove(px(20000.00)))
	assert.Equal(t, px(20000.00), b.MaxPrice())
}
