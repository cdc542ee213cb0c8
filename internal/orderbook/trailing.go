package orderbook

// adjustTrailingStops reprices every active trailing stop on a
// favorable move of last. movedSide is Buy when last has risen, which is
// favorable to resting sell-side trailing stops (they trail upward,
// protecting a long), and Sell when last has fallen, which is favorable to
// resting buy-side trailing stops (they trail downward, protecting a
// short). Stops only ever tighten, never loosen.
func (b *Book) adjustTrailingStops(movedSide Side) {
	if !b.hasLast {
		return
	}
	if movedSide == Buy {
		b.adjustTrailingSet(b.trailingSell, Sell)
	} else {
		b.adjustTrailingSet(b.trailingBuy, Buy)
	}
}

func (b *Book) adjustTrailingSet(set map[OrderID]struct{}, side Side) {
	for id := range set {
		b.adjustOneTrailingStop(id, side)
	}
}

func (b *Book) adjustOneTrailingStop(id OrderID, side Side) {
	e, ok := b.cache.get(id)
	if !ok || e.loc.Chain != ChainStop {
		return
	}
	bundle := e.elem.Value.(*StopBundle)
	if bundle.Adv == nil {
		return
	}
	newIdx := b.last + int(bundle.Adv.NTicks)
	if !b.grid.inBounds(newIdx) {
		return
	}
	oldIdx := e.loc.Level
	if side == Sell {
		if newIdx <= oldIdx {
			return // would loosen (move down); never do that
		}
	} else {
		if newIdx >= oldIdx {
			return // would loosen (move up); never do that
		}
	}

	lp := &b.grid.levels[oldIdx].stop
	eraseElem(lp, e.elem)
	b.shrinkStopBoundsIfEmpty(side, oldIdx)

	newElem := pushBack(&b.grid.levels[newIdx].stop, bundle)
	newLoc := OrderLocation{Chain: ChainStop, Level: newIdx, ID: id}
	b.cache.put(id, newLoc, newElem)
	b.extendStopBounds(side, newIdx)

	if bundle.Adv.Sibling != nil {
		b.retargetSiblingLocation(*bundle.Adv.Sibling, newLoc)
	}

	b.pushCallback(MsgAdjustTrailingStop, id, id, b.grid.price(newIdx), bundle.Size, bundle.Callback)
}

// retargetSiblingLocation rewrites the Sibling pointer held by the order
// at loc so it points at newLoc, keeping TrailingBracket's reflexive link
// current after its stop leg retraces.
func (b *Book) retargetSiblingLocation(loc OrderLocation, newLoc OrderLocation) {
	e, ok := b.cache.get(loc.ID)
	if !ok {
		return
	}
	switch e.loc.Chain {
	case ChainLimit:
		if adv := e.elem.Value.(*LimitBundle).Adv; adv != nil {
			adv.Sibling = &newLoc
		}
	case ChainStop:
		if adv := e.elem.Value.(*StopBundle).Adv; adv != nil {
			adv.Sibling = &newLoc
		}
	case ChainAONBuy, ChainAONSell:
		if adv := e.elem.Value.(*AONBundle).Adv; adv != nil {
			adv.Sibling = &newLoc
		}
	}
}

// removeFromTrailingSets drops id from whichever trailing-stop tracking
// set it may be in, called whenever a resting order is cancelled or
// converted away.
func (b *Book) removeFromTrailingSets(id OrderID) {
	delete(b.trailingBuy, id)
	delete(b.trailingSell, id)
}
