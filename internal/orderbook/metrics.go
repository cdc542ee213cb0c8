package orderbook

import (
	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/stat"

	boberrors "github.com/kestrel-trading/orderbook/internal/errors"
)

// EngineMetrics holds the book's Prometheus collectors.
type EngineMetrics struct {
	OrdersProcessed *prometheus.CounterVec
	Trades          prometheus.Counter
	VolumeTraded    prometheus.Counter
	QueueDepth      prometheus.Gauge
	CallbackLatency prometheus.Histogram
}

func newEngineMetrics() *EngineMetrics {
	return &EngineMetrics{
		OrdersProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderbook",
			Name:      "orders_processed_total",
			Help:      "Count of order submissions processed by type.",
		}, []string{"order_type"}),
		Trades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderbook",
			Name:      "trades_total",
			Help:      "Count of completed fills.",
		}),
		VolumeTraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderbook",
			Name:      "volume_traded_total",
			Help:      "Total size matched across all fills.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "orderbook",
			Name:      "dispatch_queue_depth",
			Help:      "Number of elements currently queued for the dispatcher.",
		}),
		CallbackLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "orderbook",
			Name:      "callback_drain_seconds",
			Help:      "Wall-clock time spent draining one batch of deferred callbacks.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Register registers every collector against reg, so a process hosting
// several Book instances can namespace them with separate registries.
func (m *EngineMetrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{m.OrdersProcessed, m.Trades, m.VolumeTraded, m.QueueDepth, m.CallbackLatency}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Metrics returns the book's collector bundle for registration by the
// host process.
func (b *Book) Metrics() *EngineMetrics { return b.metrics }

// VWAP computes the volume-weighted average trade price over the entire
// retained time-and-sales log.
func (b *Book) VWAP() (float64, error) {
	b.mu.Lock()
	prices := make([]float64, len(b.timeSales))
	weights := make([]float64, len(b.timeSales))
	for i, t := range b.timeSales {
		prices[i] = t.Price.Float()
		weights[i] = float64(t.Size)
	}
	b.mu.Unlock()
	if len(prices) == 0 {
		return 0, boberrors.New(boberrors.OrderNotFound, "no trades recorded")
	}
	return stat.Mean(prices, weights), nil
}

// PriceVariance computes the size-weighted variance of trade prices over
// the retained time-and-sales log.
func (b *Book) PriceVariance() (float64, error) {
	b.mu.Lock()
	prices := make([]float64, len(b.timeSales))
	weights := make([]float64, len(b.timeSales))
	for i, t := range b.timeSales {
		prices[i] = t.Price.Float()
		weights[i] = float64(t.Size)
	}
	b.mu.Unlock()
	if len(prices) < 2 {
		return 0, boberrors.New(boberrors.OrderNotFound, "fewer than two trades recorded")
	}
	return stat.Variance(prices, weights), nil
}
