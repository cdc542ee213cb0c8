package orderbook

// scanStops converts every stop whose trigger price the last trade has
// crossed into a market order (plain stop) or a limit order (stop-limit). Buy stops
// trigger as last rises through [lowBuyStop, last]; sell stops trigger as
// last falls through [last, highSellStop]. Each triggered stop is removed
// from the stop chain, allocated a fresh id, and reinjected so its
// own matching and any further cascades run before scanStops continues.
func (b *Book) scanStops() {
	if !b.hasLast {
		return
	}
	b.scanStopSide(Buy)
	b.scanStopSide(Sell)
}

func (b *Book) scanStopSide(side Side) bool {
	lo, hi := b.lowBuyStop, b.highBuyStop
	inRange := func(idx int) bool { return idx <= b.last }
	if side == Sell {
		lo, hi = b.lowSellStop, b.highSellStop
		inRange = func(idx int) bool { return idx >= b.last }
	}
	if lo > hi {
		return false
	}
	triggeredAny := false
	for {
		idx, bundle, ok := b.nextTriggeredStop(side, lo, hi, inRange)
		if !ok {
			break
		}
		triggeredAny = true
		b.fireStop(idx, side, bundle)
		if side == Buy {
			lo, hi = b.lowBuyStop, b.highBuyStop
		} else {
			lo, hi = b.lowSellStop, b.highSellStop
		}
		if lo > hi {
			break
		}
	}
	return triggeredAny
}

// nextTriggeredStop scans the stop range for the first level with a
// triggered, non-empty stop chain, returning its front bundle.
func (b *Book) nextTriggeredStop(side Side, lo, hi int, inRange func(int) bool) (int, *StopBundle, bool) {
	start, end, step := lo, hi, 1
	if side == Sell {
		start, end, step = hi, lo, -1
	}
	for idx := start; stepInBounds(idx, end, step); idx += step {
		if !inRange(idx) {
			continue
		}
		lp := b.grid.stopChainAt(idx)
		if chainEmpty(lp) {
			continue
		}
		return idx, lp.Front().Value.(*StopBundle), true
	}
	return 0, nil, false
}

func stepInBounds(idx, end, step int) bool {
	if step > 0 {
		return idx <= end
	}
	return idx >= end
}

// fireStop removes bundle from the stop chain at idx and reinjects it as
// a market order (plain stop) or a limit order at its limit price
// (stop-limit) under a freshly-allocated id.
func (b *Book) fireStop(idx int, side Side, bundle *StopBundle) {
	lp := &b.grid.levels[idx].stop
	e := frontElem(*lp)
	eraseElem(lp, e)
	b.cache.evict(bundle.ID)
	b.removeFromTrailingSets(bundle.ID)
	b.shrinkStopBoundsIfEmpty(side, idx)

	newID := b.allocID()
	msg := MsgStopToMarket
	elem := &orderQueueElem{kind: elemBasic, presetID: newID, orderType: Market, side: bundle.Side, size: bundle.Size, callback: bundle.Callback, prebuiltAdv: bundle.Adv}
	if bundle.HasLimit {
		msg = MsgStopToLimit
		elem.orderType = Limit
		elem.limit = bundle.Limit
		elem.hasLimit = true
	}
	b.pushCallback(msg, bundle.ID, newID, Price{}, bundle.Size, bundle.Callback)
	b.reinject(elem)
}

func (b *Book) shrinkStopBoundsIfEmpty(side Side, idx int) {
	lo, hi := &b.lowBuyStop, &b.highBuyStop
	if side == Sell {
		lo, hi = &b.lowSellStop, &b.highSellStop
	}
	if !chainEmpty(b.grid.stopChainAt(idx)) {
		return
	}
	if idx == *lo {
		for *lo <= *hi && chainEmpty(b.grid.stopChainAt(*lo)) {
			*lo++
		}
	}
	if idx == *hi {
		for *hi >= *lo && chainEmpty(b.grid.stopChainAt(*hi)) {
			*hi--
		}
	}
	if *lo > *hi {
		*lo, *hi = noLow, noHigh
	}
}
