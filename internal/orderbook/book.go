package orderbook

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	boberrors "github.com/kestrel-trading/orderbook/internal/errors"
	"github.com/kestrel-trading/orderbook/internal/tickprice"
)

// sentinel index values for the cached extrema.
const (
	noBid  = -1 // before_begin
	noLow  = 1 << 30
	noHigh = -1
)

// Config configures New. QueueSize bounds the MPSC order queue
// depth; MaxBytes bounds grid memory (0 disables the cap); RatePerSec/
// Burst configure the optional ingestion limiter (0 disables it).
type Config struct {
	Min        Price
	Max        Price
	Ratio      tickprice.Ratio
	QueueSize  int
	MaxBytes   uint64
	RatePerSec float64
	Burst      int
	Logger     *zap.Logger
}

// Book is a single-symbol, in-memory limit order book and matching
// engine. The zero value is not usable; construct with New.
type Book struct {
	id     uuid.UUID
	logger *zap.Logger

	mu    sync.Mutex
	grid  *grid
	cache *lookupCache

	bid     int
	ask     int
	hasLast bool
	last    int

	lastSize    uint64
	totalVolume uint64

	lowBuyStop, highBuyStop   int
	lowSellStop, highSellStop int

	lowBuyAON, highBuyAON   int
	lowSellAON, highSellAON int

	trailingBuy  map[OrderID]struct{}
	trailingSell map[OrderID]struct{}

	timeSales []TimeSaleEntry
	nextID    uint64

	queue       chan *orderQueueElem
	outstanding int64
	done        chan struct{}
	wg          sync.WaitGroup
	limiter     *rate.Limiter

	pendingCallbacks  []callbackRecord
	busyWithCallbacks bool
	callbackPool      *ants.Pool
	breakers          map[uintptr]*breakerEntry
	breakersMu        sync.Mutex

	metrics *EngineMetrics
}

// New constructs a Book spanning [cfg.Min, cfg.Max] on the grid defined by
// cfg.Ratio and starts its dispatcher goroutine. Fails if min <= 0,
// min > max, or ticks in range < 3.
func New(cfg Config) (*Book, error) {
	if cfg.Min.Ratio != cfg.Ratio {
		cfg.Min.Ratio = cfg.Ratio
	}
	if cfg.Max.Ratio != cfg.Ratio {
		cfg.Max.Ratio = cfg.Ratio
	}
	if err := cfg.Ratio.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Min.Greater(Price{Ratio: cfg.Ratio}) {
		return nil, boberrors.New(boberrors.InvalidPrice, "min price must be > 0")
	}
	if cfg.Min.Greater(cfg.Max) {
		return nil, boberrors.New(boberrors.InvalidPrice, "min price must not exceed max price")
	}
	g, err := newGrid(cfg.Ratio, cfg.Min, cfg.Max, cfg.MaxBytes)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := ants.NewPool(0, ants.WithNonblocking(false))
	if err != nil {
		return nil, boberrors.Wrap(err, boberrors.ResourceExhausted, "failed to start callback worker pool")
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	b := &Book{
		id:            uuid.New(),
		logger:        logger,
		grid:          g,
		cache:         newLookupCache(),
		bid: noBid,
		ask: g.len(),
		lowBuyStop: noLow, highBuyStop: noHigh,
		lowSellStop: noLow, highSellStop: noHigh,
		lowBuyAON: noLow, highBuyAON: noHigh,
		lowSellAON: noLow, highSellAON: noHigh,
		trailingBuy:  make(map[OrderID]struct{}),
		trailingSell: make(map[OrderID]struct{}),
		queue:        make(chan *orderQueueElem, queueSize),
		done:         make(chan struct{}),
		limiter:      limiter,
		callbackPool: pool,
		breakers:     make(map[uintptr]*breakerEntry),
		metrics:      newEngineMetrics(),
	}
	b.wg.Add(1)
	go b.dispatchLoop()
	logger.Info("orderbook constructed",
		zap.String("book_id", b.id.String()),
		zap.Float64("min_price", cfg.Min.Float()),
		zap.Float64("max_price", cfg.Max.Float()))
	return b, nil
}

// Close stops the dispatcher and releases the callback pool. Pending
// submissions already enqueued are drained first.
func (b *Book) Close() {
	b.queue <- &orderQueueElem{kind: elemShutdown}
	b.wg.Wait()
	b.callbackPool.Release()
}

// ID returns the book's instance identifier.
func (b *Book) ID() uuid.UUID { return b.id }

// --- grid growth (public, serialized through the dispatcher) ---

// GrowBookAbove extends the grid so newMax is addressable.
func (b *Book) GrowBookAbove(newMax Price) error {
	return b.submitGrow(newMax, true)
}

// GrowBookBelow extends the grid so newMin is addressable.
func (b *Book) GrowBookBelow(newMin Price) error {
	return b.submitGrow(newMin, false)
}

func (b *Book) submitGrow(p Price, above bool) error {
	elem := &orderQueueElem{kind: elemGrow, growPrice: p, growAbove: above, result: make(chan submitResult, 1)}
	return b.submit(elem)
}

// --- simple queries; all take the master lock ---

func (b *Book) BidPrice() (Price, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bid == noBid {
		return Price{}, false
	}
	return b.grid.price(b.bid), true
}

func (b *Book) AskPrice() (Price, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ask == b.grid.len() {
		return Price{}, false
	}
	return b.grid.price(b.ask), true
}

func (b *Book) LastPrice() (Price, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasLast {
		return Price{}, false
	}
	return b.grid.price(b.last), true
}

func (b *Book) MinPrice() Price { return b.grid.minPrice() }
func (b *Book) MaxPrice() Price { return b.grid.maxPrice() }

func (b *Book) BidSize() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bid == noBid {
		return 0
	}
	return chainSize(b.grid.limitChainAt(b.bid))
}

func (b *Book) AskSize() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ask == b.grid.len() {
		return 0
	}
	return chainSize(b.grid.limitChainAt(b.ask))
}

func (b *Book) LastSize() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSize
}

func (b *Book) Volume() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalVolume
}

func (b *Book) TotalBidSize() uint64 { return b.totalSideLimit(Buy) }
func (b *Book) TotalAskSize() uint64 { return b.totalSideLimit(Sell) }

func (b *Book) totalSideLimit(side Side) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var total uint64
	lo, hi := 0, b.grid.len()-1
	if side == Buy {
		if b.bid == noBid {
			return 0
		}
		hi = b.bid
	} else {
		if b.ask == b.grid.len() {
			return 0
		}
		lo = b.ask
	}
	for i := lo; i <= hi; i++ {
		total += chainSize(b.grid.limitChainAt(i))
	}
	return total
}

func (b *Book) TotalSize() uint64 { return b.TotalBidSize() + b.TotalAskSize() }

func (b *Book) TotalAONBidSize() uint64 { return b.totalAONSide(Buy) }
func (b *Book) TotalAONAskSize() uint64 { return b.totalAONSide(Sell) }

func (b *Book) totalAONSide(side Side) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var lo, hi int
	if side == Buy {
		lo, hi = b.lowBuyAON, b.highBuyAON
	} else {
		lo, hi = b.lowSellAON, b.highSellAON
	}
	if lo > hi {
		return 0
	}
	var total uint64
	for i := lo; i <= hi; i++ {
		total += chainSize(b.grid.aonChainAt(i, side))
	}
	return total
}

// LastID returns the most recently allocated externally visible order id.
func (b *Book) LastID() OrderID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return OrderID(b.nextID)
}

// TimeAndSales returns a copy of the append-only trade log.
func (b *Book) TimeAndSales() []TimeSaleEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]TimeSaleEntry, len(b.timeSales))
	copy(out, b.timeSales)
	return out
}

// --- depth queries ---

type DepthLevel struct {
	Price Price
	Size  uint64
}

func (b *Book) BidDepth(n int) []DepthLevel { return b.depth(Buy, n) }
func (b *Book) AskDepth(n int) []DepthLevel { return b.depth(Sell, n) }

func (b *Book) depth(side Side, n int) []DepthLevel {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []DepthLevel
	if side == Buy {
		for i := b.bid; i >= 0 && len(out) < n; i-- {
			if sz := chainSize(b.grid.limitChainAt(i)); sz > 0 {
				out = append(out, DepthLevel{Price: b.grid.price(i), Size: sz})
			}
		}
	} else {
		for i := b.ask; i < b.grid.len() && len(out) < n; i++ {
			if sz := chainSize(b.grid.limitChainAt(i)); sz > 0 {
				out = append(out, DepthLevel{Price: b.grid.price(i), Size: sz})
			}
		}
	}
	return out
}

// MarketDepth returns n levels of bid depth followed by n levels of ask
// depth.
func (b *Book) MarketDepth(n int) (bids, asks []DepthLevel) {
	return b.BidDepth(n), b.AskDepth(n)
}

// AONMarketDepth reports resting AON size per price level on both sides.
func (b *Book) AONMarketDepth() (bids, asks []DepthLevel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lowBuyAON <= b.highBuyAON {
		for i := b.lowBuyAON; i <= b.highBuyAON; i++ {
			if sz := chainSize(b.grid.aonChainAt(i, Buy)); sz > 0 {
				bids = append(bids, DepthLevel{Price: b.grid.price(i), Size: sz})
			}
		}
	}
	if b.lowSellAON <= b.highSellAON {
		for i := b.lowSellAON; i <= b.highSellAON; i++ {
			if sz := chainSize(b.grid.aonChainAt(i, Sell)); sz > 0 {
				asks = append(asks, DepthLevel{Price: b.grid.price(i), Size: sz})
			}
		}
	}
	return bids, asks
}

// --- utilities ---

func (b *Book) TickSize() float64 { return b.grid.ratio.TickSize() }

func (b *Book) PriceToTick(p Price) Price { return tickprice.New(b.grid.ratio, p.Whole, p.Ticks) }

func (b *Book) TicksInRange(a, c Price) int64 { return ticksInRange(a, c) }

func (b *Book) TickMemoryRequired(a, c Price) uint64 { return tickMemoryRequired(a, c) }

func (b *Book) IsValidPrice(p Price) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.grid.isValidPrice(p)
}

// GetOrderInfo returns a snapshot of a resting order, or false if id is
// unknown.
func (b *Book) GetOrderInfo(id OrderID) (OrderInfo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.cache.get(id)
	if !ok {
		return OrderInfo{}, false
	}
	switch e.loc.Chain {
	case ChainLimit:
		lb := e.elem.Value.(*LimitBundle)
		info := OrderInfo{Type: Limit, Side: lb.Side, Limit: b.grid.price(e.loc.Level), Size: lb.Size}
		if lb.Adv != nil {
			info.Condition, info.Trigger = lb.Adv.Condition, lb.Adv.Trigger
		}
		return info, true
	case ChainStop:
		sb := e.elem.Value.(*StopBundle)
		ty := Stop
		info := OrderInfo{Side: sb.Side, Stop: b.grid.price(e.loc.Level), Size: sb.Size}
		if sb.HasLimit {
			ty = StopLimit
			info.Limit = sb.Limit
		}
		info.Type = ty
		if sb.Adv != nil {
			info.Condition, info.Trigger = sb.Adv.Condition, sb.Adv.Trigger
		}
		return info, true
	case ChainAONBuy, ChainAONSell:
		ab := e.elem.Value.(*AONBundle)
		info := OrderInfo{Type: Limit, Side: ab.Side, Limit: b.grid.price(e.loc.Level), Size: ab.Size, Condition: AON}
		if ab.Adv != nil {
			info.Trigger = ab.Adv.Trigger
		}
		return info, true
	}
	return OrderInfo{}, false
}

// allocID returns the next monotonic order id. Caller must hold mu.
func (b *Book) allocID() OrderID {
	b.nextID++
	return OrderID(b.nextID)
}

func incOutstanding(b *Book) { atomic.AddInt64(&b.outstanding, 1) }
func decOutstanding(b *Book) { atomic.AddInt64(&b.outstanding, -1) }
