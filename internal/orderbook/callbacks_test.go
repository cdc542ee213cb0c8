package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackReportsFillOnBothSides(t *testing.T) {
	b := newTestBook(t)
	var makerMsgs, takerMsgs []recordedCallback
	_, err := b.InsertLimitOrder(Sell, px(1.00), 10, collectCallback(&makerMsgs), &AdvancedTicket{})
	require.NoError(t, err)
	_, err = b.InsertMarketOrder(Buy, 10, collectCallback(&takerMsgs), &AdvancedTicket{})
	require.NoError(t, err)

	require.Len(t, makerMsgs, 1)
	assert.Equal(t, MsgFill, makerMsgs[0].msg)
	assert.Equal(t, px(1.00), makerMsgs[0].price)
	assert.Equal(t, uint64(10), makerMsgs[0].size)

	require.Len(t, takerMsgs, 1)
	assert.Equal(t, MsgFill, takerMsgs[0].msg)
}

func TestCallbackReportsCancel(t *testing.T) {
	b := newTestBook(t)
	var msgs []recordedCallback
	id, err := b.InsertLimitOrder(Buy, px(1.00), 10, collectCallback(&msgs), &AdvancedTicket{})
	require.NoError(t, err)
	require.True(t, b.PullOrder(id))

	require.Len(t, msgs, 1)
	assert.Equal(t, MsgCancel, msgs[0].msg)
}

func TestPanickingCallbackDoesNotBreakDispatcher(t *testing.T) {
	b := newTestBook(t)
	panicky := func(msg MessageKind, idOld, idNew OrderID, price Price, size uint64) {
		panic("boom")
	}
	_, err := b.InsertLimitOrder(Buy, px(1.00), 10, panicky, &AdvancedTicket{})
	require.NoError(t, err)

	// the dispatcher must still be alive and able to process further work
	_, err = b.InsertLimitOrder(Buy, px(1.01), 10, nil, &AdvancedTicket{})
	require.NoError(t, err)
	bid, ok := b.BidPrice()
	require.True(t, ok)
	assert.Equal(t, px(1.01), bid)
}

func TestBreakerForIsStablePerCallbackIdentity(t *testing.T) {
	b := newTestBook(t)
	cb := Callback(func(MessageKind, OrderID, OrderID, Price, uint64) {})
	br1 := b.breakerFor(cb)
	br2 := b.breakerFor(cb)
	assert.Same(t, br1, br2)
}
