package orderbook

import (
	"container/list"

	"github.com/segmentio/ksuid"

	boberrors "github.com/kestrel-trading/orderbook/internal/errors"
)

// fireTakerAdvanced reacts to a taker order's own advanced condition once
// trade has run against it: a bracket/trailing-stop/OTO primary can
// activate on its own immediate fill just as readily as on a later fill
// of a resting order, so the taker side needs the same fireBundleAdvanced
// hook the maker side gets in fillLevel.
func (b *Book) fireTakerAdvanced(adv *Advanced, id OrderID, size, remaining uint64, cb Callback) {
	if adv == nil {
		return
	}
	filledNow := size - remaining
	if filledNow == 0 {
		return
	}
	isFull := remaining == 0
	if b.advancedShouldFire(adv, isFull) {
		b.fireBundleAdvanced(adv, id, isFull, filledNow, cb)
	}
}

// advancedShouldFire decides whether a fill of this size should invoke
// fireBundleAdvanced. OCO and the activated bracket/trailing-bracket legs
// fire unconditionally on a full fill, since sibling cancellation does not
// depend on whatever Trigger the ticket carries; every other condition
// honors the configured Trigger.
func (b *Book) advancedShouldFire(adv *Advanced, isFull bool) bool {
	switch adv.Condition {
	case OCO, bracketActive, trailingBracketActive:
		return isFull
	default:
		return adv.Trigger == FillPartial || (adv.Trigger == FillFull && isFull)
	}
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// insertLimit rests a (non-AON) limit order, matching it against the
// opposing side first, then sweeps the opposite-side AON
// chain since newly-resting liquidity may now satisfy a bundle that
// couldn't fill earlier.
func (b *Book) insertLimit(id OrderID, side Side, price Price, size uint64, cb Callback, adv *Advanced) error {
	idx := b.grid.index(price)
	remaining := size
	if err := b.trade(side, idx, false, &remaining, id, cb); err != nil {
		return err
	}
	b.fireTakerAdvanced(adv, id, size, remaining, cb)
	if remaining > 0 {
		b.restLimit(id, side, idx, remaining, cb, adv)
	}
	b.aonSweep(side.Opposite())
	return nil
}

// insertLimitAON rests an all-or-none limit order. It never partially
// rests: a look-ahead (limitIsFillable) decides whether to trade or to
// rest whole on the dedicated AON chain.
func (b *Book) insertLimitAON(id OrderID, side Side, price Price, size uint64, cb Callback, adv *Advanced) error {
	idx := b.grid.index(price)
	if b.limitIsFillable(side, idx, size) {
		remaining := size
		if err := b.trade(side, idx, false, &remaining, id, cb); err != nil {
			return err
		}
		b.fireTakerAdvanced(adv, id, size, remaining, cb)
		if remaining > 0 {
			// Precheck said fillable; if concurrent AON consumption left a
			// remainder, it still cannot partially rest: put the residual on
			// the AON chain to await further liquidity.
			b.restAON(id, side, idx, remaining, cb, adv)
		}
	} else {
		b.restAON(id, side, idx, size, cb, adv)
	}
	b.aonSweep(side.Opposite())
	return nil
}

// insertMarket fully consumes remaining against the book out to the grid
// edge. Market orders never rest; an unfilled remainder is reported as
// LiquidityExhausted.
func (b *Book) insertMarket(id OrderID, side Side, size uint64, cb Callback, adv *Advanced) error {
	remaining := size
	if err := b.trade(side, 0, true, &remaining, id, cb); err != nil {
		return err
	}
	b.fireTakerAdvanced(adv, id, size, remaining, cb)
	b.aonSweep(side.Opposite())
	if remaining > 0 {
		return boberrors.NewLiquidityExhausted(size, remaining, uint64(id))
	}
	return nil
}

// insertStop rests a stop or stop-limit order on the stop chain.
func (b *Book) insertStop(id OrderID, side Side, stopPrice Price, hasLimit bool, limitPrice Price, size uint64, cb Callback, adv *Advanced) {
	idx := b.grid.index(stopPrice)
	bundle := &StopBundle{ID: id, Side: side, Size: size, HasLimit: hasLimit, Limit: limitPrice, Callback: cb, Adv: adv}
	elem := pushBack(&b.grid.levels[idx].stop, bundle)
	b.cache.put(id, OrderLocation{Chain: ChainStop, Level: idx, ID: id}, elem)
	b.extendStopBounds(side, idx)
}

func (b *Book) restLimit(id OrderID, side Side, idx int, size uint64, cb Callback, adv *Advanced) {
	bundle := &LimitBundle{ID: id, Side: side, Size: size, Callback: cb, Adv: adv}
	elem := pushBack(&b.grid.levels[idx].limit, bundle)
	b.cache.put(id, OrderLocation{Chain: ChainLimit, Level: idx, ID: id}, elem)
	if side == Buy {
		if b.bid == noBid || idx > b.bid {
			b.bid = idx
		}
	} else {
		if b.ask == b.grid.len() || idx < b.ask {
			b.ask = idx
		}
	}
}

func (b *Book) restAON(id OrderID, side Side, idx int, size uint64, cb Callback, adv *Advanced) {
	bundle := &AONBundle{ID: id, Side: side, Size: size, Callback: cb, Adv: adv}
	lp := &b.grid.levels[idx].aonBuy
	ck := ChainAONBuy
	if side == Sell {
		lp = &b.grid.levels[idx].aonSell
		ck = ChainAONSell
	}
	elem := pushBack(lp, bundle)
	b.cache.put(id, OrderLocation{Chain: ck, Level: idx, ID: id}, elem)
	b.extendAONBounds(side, idx)
}

func (b *Book) extendStopBounds(side Side, idx int) {
	if side == Buy {
		if idx < b.lowBuyStop {
			b.lowBuyStop = idx
		}
		if idx > b.highBuyStop {
			b.highBuyStop = idx
		}
	} else {
		if idx < b.lowSellStop {
			b.lowSellStop = idx
		}
		if idx > b.highSellStop {
			b.highSellStop = idx
		}
	}
}

func (b *Book) extendAONBounds(side Side, idx int) {
	if side == Buy {
		if idx < b.lowBuyAON {
			b.lowBuyAON = idx
		}
		if idx > b.highBuyAON {
			b.highBuyAON = idx
		}
	} else {
		if idx < b.lowSellAON {
			b.lowSellAON = idx
		}
		if idx > b.highSellAON {
			b.highSellAON = idx
		}
	}
}

// trade is the hot matching loop: walk opposing price
// levels from best outward while within bounds and size remains,
// consuming AON bundles first then the FIFO limit chain at each level.
func (b *Book) trade(takerSide Side, boundary int, unbounded bool, remaining *uint64, takerID OrderID, cb Callback) error {
	prevHasLast, prevLast := b.hasLast, b.last
	needStops := false
	for *remaining > 0 {
		idx, ok := b.nextOpposingLevel(takerSide, boundary, unbounded)
		if !ok {
			break
		}
		matched := b.fillLevel(idx, takerSide, remaining, takerID, cb)
		if matched {
			needStops = true
		}
		if chainEmpty(b.grid.limitChainAt(idx)) {
			if takerSide == Buy {
				b.recalcAsk()
			} else {
				b.recalcBid()
			}
		}
		if !matched {
			break
		}
	}
	if b.hasLast && (!prevHasLast || b.last != prevLast) {
		movedSide := takerSide
		if prevHasLast && b.last < prevLast {
			movedSide = Sell
		} else if prevHasLast {
			movedSide = Buy
		}
		b.adjustTrailingStops(movedSide)
	}
	if needStops {
		b.scanStops()
	}
	return nil
}

func (b *Book) nextOpposingLevel(takerSide Side, boundary int, unbounded bool) (int, bool) {
	if takerSide == Buy {
		idx := b.ask
		if idx >= b.grid.len() {
			return 0, false
		}
		if !unbounded && idx > boundary {
			return 0, false
		}
		return idx, true
	}
	idx := b.bid
	if idx <= noBid {
		return 0, false
	}
	if !unbounded && idx < boundary {
		return 0, false
	}
	return idx, true
}

// fillLevel matches AON bundles first then the limit chain at idx against
// the taker, mutating *remaining. Returns whether anything matched.
func (b *Book) fillLevel(idx int, takerSide Side, remaining *uint64, takerID OrderID, cb Callback) bool {
	opSide := takerSide.Opposite()
	matched := false

	aonLp := &b.grid.levels[idx].aonSell
	if opSide == Buy {
		aonLp = &b.grid.levels[idx].aonBuy
	}
	for e := frontElem(*aonLp); e != nil && *remaining > 0; {
		bundle := e.Value.(*AONBundle)
		next := e.Next()
		if *remaining >= bundle.Size {
			b.fillPair(idx, takerSide, takerID, cb, bundle.ID, bundle.Side, bundle.Callback, bundle.Size)
			*remaining -= bundle.Size
			eraseElem(aonLp, e)
			b.cache.evict(bundle.ID)
			b.shrinkAONBoundsIfEmpty(opSide, idx)
			if bundle.Adv != nil {
				b.fireBundleAdvanced(bundle.Adv, bundle.ID, true, bundle.Size, bundle.Callback)
			}
			matched = true
		}
		e = next
	}

	limLp := &b.grid.levels[idx].limit
	for e := frontElem(*limLp); e != nil && *remaining > 0; {
		bundle := e.Value.(*LimitBundle)
		fillSz := minU64(*remaining, bundle.Size)
		isFull := fillSz == bundle.Size
		if bundle.Adv != nil && b.advancedShouldFire(bundle.Adv, isFull) {
			b.fireBundleAdvanced(bundle.Adv, bundle.ID, isFull, fillSz, bundle.Callback)
		}
		b.fillPair(idx, takerSide, takerID, cb, bundle.ID, bundle.Side, bundle.Callback, fillSz)
		*remaining -= fillSz
		matched = true
		bundle.Size -= fillSz
		next := e.Next()
		if bundle.Size == 0 {
			eraseElem(limLp, e)
			b.cache.evict(bundle.ID)
		}
		e = next
	}
	return matched
}

// fillPair records one matched fill: buy-side callback then sell-side
// callback, a single time-and-sale entry at the maker's resting price.
func (b *Book) fillPair(idx int, takerSide Side, takerID OrderID, takerCb Callback, makerID OrderID, makerSide Side, makerCb Callback, size uint64) {
	price := b.grid.price(idx)
	var buyID, sellID OrderID
	var buyCb, sellCb Callback
	if takerSide == Buy {
		buyID, buyCb, sellID, sellCb = takerID, takerCb, makerID, makerCb
	} else {
		buyID, buyCb, sellID, sellCb = makerID, makerCb, takerID, takerCb
	}
	b.pushCallback(MsgFill, buyID, buyID, price, size, buyCb)
	b.pushCallback(MsgFill, sellID, sellID, price, size, sellCb)
	b.timeSales = append(b.timeSales, TimeSaleEntry{ID: ksuid.New().String(), Price: price, Size: size})
	b.lastSize = size
	b.totalVolume += size
	b.hasLast = true
	b.last = idx
	if b.metrics != nil {
		b.metrics.Trades.Inc()
		b.metrics.VolumeTraded.Add(float64(size))
	}
}

func (b *Book) recalcAsk() {
	for i := b.ask; i < b.grid.len(); i++ {
		if !chainEmpty(b.grid.limitChainAt(i)) {
			b.ask = i
			return
		}
	}
	b.ask = b.grid.len()
}

func (b *Book) recalcBid() {
	for i := b.bid; i >= 0; i-- {
		if !chainEmpty(b.grid.limitChainAt(i)) {
			b.bid = i
			return
		}
	}
	b.bid = noBid
}

func (b *Book) shrinkAONBoundsIfEmpty(side Side, idx int) {
	if !chainEmpty(b.grid.aonChainAt(idx, side)) {
		return
	}
	lo, hi := &b.lowBuyAON, &b.highBuyAON
	if side == Sell {
		lo, hi = &b.lowSellAON, &b.highSellAON
	}
	if idx == *lo {
		for *lo <= *hi && chainEmpty(b.grid.aonChainAt(*lo, side)) {
			*lo++
		}
	}
	if idx == *hi {
		for *hi >= *lo && chainEmpty(b.grid.aonChainAt(*hi, side)) {
			*hi--
		}
	}
	if *lo > *hi {
		*lo, *hi = noLow, noHigh
	}
}

func frontElem(l *list.List) *list.Element {
	if l == nil {
		return nil
	}
	return l.Front()
}

// limitIsFillable is the look-ahead used before resting an incoming AON
// order: does the opposing side's non-AON liquidity
// at prices at least as good as idx sum to at least size?
func (b *Book) limitIsFillable(side Side, idx int, size uint64) bool {
	var total uint64
	if side == Buy {
		if b.ask > idx || b.ask >= b.grid.len() {
			return false
		}
		for i := b.ask; i <= idx; i++ {
			total += chainSize(b.grid.limitChainAt(i))
			if total >= size {
				return true
			}
		}
	} else {
		if b.bid < idx || b.bid == noBid {
			return false
		}
		for i := b.bid; i >= idx; i-- {
			total += chainSize(b.grid.limitChainAt(i))
			if total >= size {
				return true
			}
		}
	}
	return total >= size
}

// aonSweep checks every resting AON bundle on aonSide against the
// combined resting non-AON liquidity on the opposite side at prices at
// least as good as the bundle's own price, filling any bundle whose
// threshold is now met.
func (b *Book) aonSweep(aonSide Side) {
	lo, hi := b.lowBuyAON, b.highBuyAON
	if aonSide == Sell {
		lo, hi = b.lowSellAON, b.highSellAON
	}
	if lo > hi {
		return
	}
	idx := lo
	for idx <= hi {
		// aonSide==Sell needs resting BUY liquidity at prices >= the AON's
		// price; aonSide==Buy needs resting SELL liquidity at prices <= the
		// AON's price. Recomputed every iteration since a prior fill in
		// this same sweep can move bid/ask.
		sourceBound := b.bid
		if aonSide == Buy {
			sourceBound = b.ask
		}
		aonLp := b.grid.aonChainAt(idx, aonSide)
		if chainEmpty(aonLp) {
			idx++
			continue
		}
		bundle := aonLp.Front().Value.(*AONBundle)
		var available uint64
		ok := false
		if aonSide == Sell {
			if sourceBound != noBid && sourceBound >= idx {
				for i := sourceBound; i >= idx; i-- {
					available += chainSize(b.grid.limitChainAt(i))
				}
				ok = available >= bundle.Size
			}
		} else {
			if sourceBound < b.grid.len() && sourceBound <= idx {
				for i := sourceBound; i <= idx; i++ {
					available += chainSize(b.grid.limitChainAt(i))
				}
				ok = available >= bundle.Size
			}
		}
		if ok {
			b.fillRestingAON(idx, bundle)
			idx = lo // bounds may have shifted; restart scan conservatively
			lo = b.lowerAONBound(aonSide)
			hi = b.upperAONBound(aonSide)
			if lo > hi {
				return
			}
			continue
		}
		idx++
	}
}

func (b *Book) lowerAONBound(side Side) int {
	if side == Buy {
		return b.lowBuyAON
	}
	return b.lowSellAON
}

func (b *Book) upperAONBound(side Side) int {
	if side == Buy {
		return b.highBuyAON
	}
	return b.highSellAON
}

// fillRestingAON fills a resting AON bundle entirely against the book's
// opposing non-AON liquidity, recording every leg at the AON's own resting
// price rather than at each maker's price.
func (b *Book) fillRestingAON(idx int, bundle *AONBundle) {
	takerSide := bundle.Side.Opposite()
	prevHasLast, prevLast := b.hasLast, b.last
	remaining := bundle.Size
	price := b.grid.price(idx)
	for remaining > 0 {
		var srcIdx int
		var ok bool
		if takerSide == Buy {
			srcIdx, ok = b.bid, b.bid != noBid && b.bid >= idx
		} else {
			srcIdx, ok = b.ask, b.ask < b.grid.len() && b.ask <= idx
		}
		if !ok {
			break
		}
		limLp := &b.grid.levels[srcIdx].limit
		e := frontElem(*limLp)
		if e == nil {
			break
		}
		maker := e.Value.(*LimitBundle)
		fillSz := minU64(remaining, maker.Size)
		b.pushCallback(MsgFill, maker.ID, maker.ID, price, fillSz, maker.Callback)
		b.pushCallback(MsgFill, bundle.ID, bundle.ID, price, fillSz, bundle.Callback)
		b.timeSales = append(b.timeSales, TimeSaleEntry{ID: ksuid.New().String(), Price: price, Size: fillSz})
		b.lastSize = fillSz
		b.totalVolume += fillSz
		b.hasLast, b.last = true, idx
		if b.metrics != nil {
			b.metrics.Trades.Inc()
			b.metrics.VolumeTraded.Add(float64(fillSz))
		}
		remaining -= fillSz
		maker.Size -= fillSz
		if maker.Size == 0 {
			eraseElem(limLp, e)
			b.cache.evict(maker.ID)
		}
		if chainEmpty(b.grid.limitChainAt(srcIdx)) {
			if takerSide == Buy {
				b.recalcBid()
			} else {
				b.recalcAsk()
			}
		}
	}
	eraseElem(&b.grid.levels[idx].aonBuy, nilOrFront(b.grid.levels[idx].aonBuy, bundle))
	eraseElem(&b.grid.levels[idx].aonSell, nilOrFront(b.grid.levels[idx].aonSell, bundle))
	b.cache.evict(bundle.ID)
	b.shrinkAONBoundsIfEmpty(bundle.Side, idx)
	if bundle.Adv != nil {
		b.fireBundleAdvanced(bundle.Adv, bundle.ID, true, bundle.Size, bundle.Callback)
	}
	movedSide := takerSide
	if prevHasLast && b.last < prevLast {
		movedSide = Sell
	} else if prevHasLast && b.last > prevLast {
		movedSide = Buy
	}
	b.adjustTrailingStops(movedSide)
	b.scanStops()
}

// nilOrFront returns the element holding bundle within l, or nil. Used to
// erase a specific AON bundle that was the chain's front element.
func nilOrFront(l *list.List, bundle *AONBundle) *list.Element {
	if l == nil {
		return nil
	}
	for e := l.Front(); e != nil; e = e.Next() {
		if e.Value.(*AONBundle) == bundle {
			return e
		}
	}
	return nil
}

// pullOrderLocked cancels id, returning whether it was found. With
// pullLinked false, the order's OCO/bracket sibling (if any) is cancelled
// too and a trigger is reported for it; pullLinked is true when id is
// itself being pulled as a linked sibling, so no further cascade is made.
func (b *Book) pullOrderLocked(id OrderID, pullLinked bool) bool {
	e, ok := b.cache.get(id)
	if !ok {
		return false
	}
	switch e.loc.Chain {
	case ChainLimit:
		bundle := e.elem.Value.(*LimitBundle)
		eraseElem(&b.grid.levels[e.loc.Level].limit, e.elem)
		b.cache.evict(id)
		if chainEmpty(b.grid.limitChainAt(e.loc.Level)) {
			if e.loc.Level == b.bid {
				b.recalcBid()
			} else if e.loc.Level == b.ask {
				b.recalcAsk()
			}
		}
		b.pushCallback(MsgCancel, id, id, Price{}, bundle.Size, bundle.Callback)
		if !pullLinked {
			b.pullAdvancedSibling(bundle.Adv)
		}
	case ChainStop:
		bundle := e.elem.Value.(*StopBundle)
		eraseElem(&b.grid.levels[e.loc.Level].stop, e.elem)
		b.cache.evict(id)
		b.shrinkStopBoundsIfEmpty(bundle.Side, e.loc.Level)
		b.removeFromTrailingSets(id)
		b.pushCallback(MsgCancel, id, id, Price{}, bundle.Size, bundle.Callback)
		if !pullLinked {
			b.pullAdvancedSibling(bundle.Adv)
		}
	case ChainAONBuy, ChainAONSell:
		side := Buy
		if e.loc.Chain == ChainAONSell {
			side = Sell
		}
		bundle := e.elem.Value.(*AONBundle)
		lp := &b.grid.levels[e.loc.Level].aonBuy
		if side == Sell {
			lp = &b.grid.levels[e.loc.Level].aonSell
		}
		eraseElem(lp, e.elem)
		b.cache.evict(id)
		b.shrinkAONBoundsIfEmpty(side, e.loc.Level)
		b.pushCallback(MsgCancel, id, id, Price{}, bundle.Size, bundle.Callback)
		if !pullLinked {
			b.pullAdvancedSibling(bundle.Adv)
		}
	default:
		return false
	}
	return true
}

// pullAdvancedSibling cancels adv's linked sibling, if any, reporting
// trigger_OCO for an OCO pair or trigger_BRACKET_close for a bracket pair.
func (b *Book) pullAdvancedSibling(adv *Advanced) {
	if adv == nil || adv.Sibling == nil {
		return
	}
	msg := MsgTriggerOCO
	if adv.Condition == bracketActive || adv.Condition == trailingBracketActive {
		msg = MsgTriggerBracketClose
	}
	sib := *adv.Sibling
	adv.Sibling = nil
	if e, ok := b.cache.get(sib.ID); ok {
		cb := bundleCallback(e)
		b.pullOrderLocked(sib.ID, true)
		b.pushCallback(msg, sib.ID, sib.ID, Price{}, 0, cb)
	}
}

// bundleCallback extracts the registered notification callback from
// whichever bundle type e points at.
func bundleCallback(e cacheEntry) Callback {
	switch e.loc.Chain {
	case ChainLimit:
		return e.elem.Value.(*LimitBundle).Callback
	case ChainStop:
		return e.elem.Value.(*StopBundle).Callback
	case ChainAONBuy, ChainAONSell:
		return e.elem.Value.(*AONBundle).Callback
	default:
		return nil
	}
}
