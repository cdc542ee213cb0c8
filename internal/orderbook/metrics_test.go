package orderbook

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegister(t *testing.T) {
	b := newTestBook(t)
	reg := prometheus.NewRegistry()
	require.NoError(t, b.Metrics().Register(reg))
}

func TestVWAPErrorsWithNoTrades(t *testing.T) {
	b := newTestBook(t)
	_, err := b.VWAP()
	assert.Error(t, err)
}

func TestVWAPWeightsBySize(t *testing.T) {
	b := newTestBook(t)
	_, err := b.InsertLimitOrder(Sell, px(1.00), 10, nil, &AdvancedTicket{})
	require.NoError(t, err)
	_, err = b.InsertMarketOrder(Buy, 10, nil, &AdvancedTicket{})
	require.NoError(t, err)
	_, err = b.InsertLimitOrder(Sell, px(2.00), 30, nil, &AdvancedTicket{})
	require.NoError(t, err)
	_, err = b.InsertMarketOrder(Buy, 30, nil, &AdvancedTicket{})
	require.NoError(t, err)

	vwap, err := b.VWAP()
	require.NoError(t, err)
	// (1.00*10 + 2.00*30) / 40 = 1.75
	assert.InDelta(t, 1.75, vwap, 1e-9)
}

func TestPriceVarianceRequiresTwoTrades(t *testing.T) {
	b := newTestBook(t)
	_, err := b.InsertLimitOrder(Sell, px(1.00), 10, nil, &AdvancedTicket{})
	require.NoError(t, err)
	_, err = b.InsertMarketOrder(Buy, 10, nil, &AdvancedTicket{})
	require.NoError(t, err)

	_, err = b.PriceVariance()
	assert.Error(t, err)
}

func TestOrdersProcessedCounterIncrements(t *testing.T) {
	b := newTestBook(t)
	_, err := b.InsertLimitOrder(Buy, px(1.00), 10, nil, &AdvancedTicket{})
	require.NoError(t, err)
	count := testutil.ToFloat64(b.Metrics().OrdersProcessed.WithLabelValues("limit"))
	assert.Equal(t, float64(1), count)
}
