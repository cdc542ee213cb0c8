package orderbook

import (
	"reflect"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// callbackRecord is one deferred notification queued while the master
// lock is held, to be invoked after it is released.
type callbackRecord struct {
	msg   MessageKind
	idOld OrderID
	idNew OrderID
	price Price
	size  uint64
	cb    Callback
}

// breakerEntry pairs a per-callback circuit breaker with the function
// pointer identity it guards.
type breakerEntry struct {
	breaker *gobreaker.CircuitBreaker
}

// pushCallback enqueues a deferred notification. Called only from within
// process, under the master lock.
func (b *Book) pushCallback(msg MessageKind, idOld, idNew OrderID, price Price, size uint64, cb Callback) {
	b.pendingCallbacks = append(b.pendingCallbacks, callbackRecord{msg: msg, idOld: idOld, idNew: idNew, price: price, size: size, cb: cb})
}

// drainCallbacks flushes pendingCallbacks outside the master lock,
// guarding against reentrant drains from a callback that itself submits a
// new order.
func (b *Book) drainCallbacks() {
	b.mu.Lock()
	if b.busyWithCallbacks || len(b.pendingCallbacks) == 0 {
		b.mu.Unlock()
		return
	}
	b.busyWithCallbacks = true
	batch := b.pendingCallbacks
	b.pendingCallbacks = nil
	b.mu.Unlock()

	start := time.Now()
	for _, rec := range batch {
		b.invokeCallback(rec)
	}
	if b.metrics != nil {
		b.metrics.CallbackLatency.Observe(time.Since(start).Seconds())
	}

	b.mu.Lock()
	b.busyWithCallbacks = false
	more := len(b.pendingCallbacks) > 0
	b.mu.Unlock()
	if more {
		b.drainCallbacks()
	}
}

// invokeCallback runs one callback through its circuit breaker on the
// callback worker pool, recovering and logging any panic so a misbehaving
// consumer can never take down the dispatcher.
func (b *Book) invokeCallback(rec callbackRecord) {
	if rec.cb == nil {
		return
	}
	breaker := b.breakerFor(rec.cb)
	done := make(chan struct{})
	err := b.callbackPool.Submit(func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				b.logPanic("callback", r)
			}
		}()
		_, _ = breaker.Execute(func() (interface{}, error) {
			rec.cb(rec.msg, rec.idOld, rec.idNew, rec.price, rec.size)
			return nil, nil
		})
	})
	if err != nil {
		b.logger.Error("failed to submit callback to worker pool", zap.Error(err))
		return
	}
	<-done
}

// breakerFor returns the circuit breaker for cb's function identity,
// creating one on first use.
func (b *Book) breakerFor(cb Callback) *gobreaker.CircuitBreaker {
	key := reflect.ValueOf(cb).Pointer()
	b.breakersMu.Lock()
	defer b.breakersMu.Unlock()
	if e, ok := b.breakers[key]; ok {
		return e.breaker
	}
	cbSettings := gobreaker.Settings{
		Name:        "orderbook-callback",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	breaker := gobreaker.NewCircuitBreaker(cbSettings)
	b.breakers[key] = &breakerEntry{breaker: breaker}
	return breaker
}
