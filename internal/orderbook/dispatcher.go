package orderbook

import (
	"context"
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"

	boberrors "github.com/kestrel-trading/orderbook/internal/errors"
)

type elemKind uint8

const (
	elemCancel elemKind = iota
	elemBasic
	elemGrow
	elemShutdown
)

// orderQueueElem is one record on the MPSC order queue.
type orderQueueElem struct {
	kind elemKind

	// elemCancel
	cancelID OrderID

	// elemBasic
	presetID OrderID // nonzero for internal reinjections that must keep/replace an id
	orderType OrderType
	side      Side
	size      uint64
	limit     Price
	hasLimit  bool
	stop      Price
	hasStop   bool
	callback  Callback
	ticket    *AdvancedTicket
	prebuiltAdv *Advanced // internally-constructed cascades (bracket/trailing children)

	// elemGrow
	growPrice Price
	growAbove bool

	result chan submitResult
}

type submitResult struct {
	id  OrderID
	ok  bool
	err error
}

// dispatchLoop is the single consumer: for { wait non-empty; pop; break on
// shutdown; acquire master lock; route; release; drain callbacks; fulfill
// promise }. Callbacks are drained before the promise is fulfilled so a
// caller blocked in submit never observes its own fill/cancel/trigger
// notifications as still pending once it returns.
func (b *Book) dispatchLoop() {
	defer b.wg.Done()
	for elem := range b.queue {
		if elem.kind == elemShutdown {
			return
		}
		b.mu.Lock()
		res := b.process(elem)
		b.mu.Unlock()
		b.drainCallbacks()
		decOutstanding(b)
		if elem.result != nil {
			elem.result <- res
		}
	}
}

// submit enqueues elem, blocks on its promise, then spin-waits for the
// outstanding-order counter to reach zero so cascaded reinjections
// (stop triggers, OTO spawns, bracket children) have finished before
// returning to the caller.
func (b *Book) submit(elem *orderQueueElem) submitResult {
	if elem.result == nil {
		elem.result = make(chan submitResult, 1)
	}
	if b.limiter != nil {
		if err := b.limiter.Wait(context.Background()); err != nil {
			return submitResult{err: boberrors.Wrap(err, boberrors.ResourceExhausted, "ingestion rate limiter rejected submission")}
		}
	}
	incOutstanding(b)
	b.queue <- elem
	if b.metrics != nil {
		b.metrics.QueueDepth.Set(float64(len(b.queue)))
	}
	res := <-elem.result
	for atomic.LoadInt64(&b.outstanding) != 0 {
		runtime.Gosched()
	}
	return res
}

// reinject is the internal cascade path: it runs routing synchronously, in the same goroutine,
// under the lock the caller already holds, bumping the outstanding
// counter only for bookkeeping/observability symmetry with external
// submissions.
func (b *Book) reinject(elem *orderQueueElem) submitResult {
	incOutstanding(b)
	res := b.process(elem)
	decOutstanding(b)
	return res
}

func okResult(id OrderID) submitResult  { return submitResult{id: id, ok: true} }
func errResult(err error) submitResult  { return submitResult{err: err} }
func boolResult(ok bool) submitResult   { return submitResult{ok: ok} }

// --- public submission API ---

// InsertLimitOrder submits a resting limit order, optionally carrying an
// advanced condition, and blocks until it and any cascade it triggers have
// fully settled.
func (b *Book) InsertLimitOrder(side Side, price Price, size uint64, cb Callback, ticket *AdvancedTicket) (OrderID, error) {
	if size == 0 {
		return 0, boberrors.New(boberrors.InvalidSize, "size must be > 0")
	}
	elem := &orderQueueElem{kind: elemBasic, orderType: Limit, side: side, size: size, limit: price, hasLimit: true, callback: cb, ticket: ticket}
	res := b.submit(elem)
	return res.id, res.err
}

// InsertMarketOrder submits a market order.
func (b *Book) InsertMarketOrder(side Side, size uint64, cb Callback, ticket *AdvancedTicket) (OrderID, error) {
	if size == 0 {
		return 0, boberrors.New(boberrors.InvalidSize, "size must be > 0")
	}
	elem := &orderQueueElem{kind: elemBasic, orderType: Market, side: side, size: size, callback: cb, ticket: ticket}
	res := b.submit(elem)
	return res.id, res.err
}

// InsertStopOrder submits a stop or stop-limit order (limit is used only
// when hasLimit is true).
func (b *Book) InsertStopOrder(side Side, stopPrice Price, hasLimit bool, limitPrice Price, size uint64, cb Callback, ticket *AdvancedTicket) (OrderID, error) {
	if size == 0 {
		return 0, boberrors.New(boberrors.InvalidSize, "size must be > 0")
	}
	ty := Stop
	if hasLimit {
		ty = StopLimit
	}
	elem := &orderQueueElem{kind: elemBasic, orderType: ty, side: side, size: size, stop: stopPrice, hasStop: true, limit: limitPrice, hasLimit: hasLimit, callback: cb, ticket: ticket}
	res := b.submit(elem)
	return res.id, res.err
}

// PullOrder cancels a resting order by id, returning false if it was not
// found.
func (b *Book) PullOrder(id OrderID) bool {
	elem := &orderQueueElem{kind: elemCancel, cancelID: id}
	res := b.submit(elem)
	return res.ok
}

// ReplaceWithLimitOrder pulls id and, if found, inserts a new limit order
// in its place. Returns 0 if the pull failed; state is unchanged in that
// case.
func (b *Book) ReplaceWithLimitOrder(id OrderID, side Side, price Price, size uint64, cb Callback, ticket *AdvancedTicket) (OrderID, error) {
	if !b.PullOrder(id) {
		return 0, nil
	}
	return b.InsertLimitOrder(side, price, size, cb, ticket)
}

// ReplaceWithMarketOrder pulls id then inserts a market order.
func (b *Book) ReplaceWithMarketOrder(id OrderID, side Side, size uint64, cb Callback, ticket *AdvancedTicket) (OrderID, error) {
	if !b.PullOrder(id) {
		return 0, nil
	}
	return b.InsertMarketOrder(side, size, cb, ticket)
}

// ReplaceWithStopOrder pulls id then inserts a stop/stop-limit order.
func (b *Book) ReplaceWithStopOrder(id OrderID, side Side, stopPrice Price, hasLimit bool, limitPrice Price, size uint64, cb Callback, ticket *AdvancedTicket) (OrderID, error) {
	if !b.PullOrder(id) {
		return 0, nil
	}
	return b.InsertStopOrder(side, stopPrice, hasLimit, limitPrice, size, cb, ticket)
}

func (b *Book) logPanic(where string, r interface{}) {
	b.logger.Error("recovered panic", zap.String("where", where), zap.Any("recovered", r))
}
