package orderbook

import (
	boberrors "github.com/kestrel-trading/orderbook/internal/errors"
)

// AdvancedTicket is the submission-time description of an advanced
// condition. It shares its shape with Advanced, the resting bundle's
// live state, since both carry the same fan-out on Condition: a ticket is simply an Advanced that has not yet been attached
// to a resting bundle.
type AdvancedTicket = Advanced

// validateTicket checks a ticket's shape against the order type it rides
// on, before any state is mutated.
func validateTicket(ty OrderType, t *AdvancedTicket) error {
	switch t.Condition {
	case OCO:
		if t.OCOSiblingParams == nil {
			return boberrors.New(boberrors.AdvancedTicketMalformed, "OCO requires OCOSiblingParams")
		}
	case OTO:
		if t.OTOParams == nil {
			return boberrors.New(boberrors.AdvancedTicketMalformed, "OTO requires OTOParams")
		}
	case FOK:
		if ty != Limit {
			return boberrors.New(boberrors.InvalidOrderType, "FOK requires a limit order")
		}
	case AON:
		if ty != Limit {
			return boberrors.New(boberrors.InvalidOrderType, "AON requires a limit order")
		}
	case Bracket:
		if t.LossParams == nil || t.TargetParams == nil {
			return boberrors.New(boberrors.AdvancedTicketMalformed, "Bracket requires LossParams and TargetParams")
		}
		if t.LossParams.ByTicks || t.TargetParams.ByTicks {
			return boberrors.New(boberrors.AdvancedTicketMalformed, "Bracket legs must be by-price, not by-ticks")
		}
	case TrailingBracket:
		if t.LossParams == nil || t.TargetParams == nil {
			return boberrors.New(boberrors.AdvancedTicketMalformed, "TrailingBracket requires LossParams and TargetParams")
		}
		if !t.LossParams.ByTicks || !t.TargetParams.ByTicks {
			return boberrors.New(boberrors.AdvancedTicketMalformed, "TrailingBracket legs must be by-ticks")
		}
	case TrailingStop:
		if t.TrailingParams == nil {
			return boberrors.New(boberrors.AdvancedTicketMalformed, "TrailingStop requires TrailingParams")
		}
		if !t.TrailingParams.ByTicks {
			return boberrors.New(boberrors.AdvancedTicketMalformed, "TrailingStop parameters must be by-ticks")
		}
	case NoCondition:
	default:
		return boberrors.New(boberrors.AdvancedTicketMalformed, "unsupported condition for a ticket")
	}
	return nil
}

// routeAdvanced dispatches a ticket-bearing submission per its condition.
// It runs inside process, under the master lock.
func (b *Book) routeAdvanced(elem *orderQueueElem) submitResult {
	t := elem.ticket
	switch t.Condition {
	case FOK:
		return b.routeFOK(elem)
	case AON:
		return b.routeAON(elem)
	case OCO:
		return b.routeOCO(elem)
	case OTO:
		return b.routeOTO(elem)
	case Bracket, TrailingBracket:
		return b.routePrimaryWithChildren(elem)
	case TrailingStop:
		return b.routeTrailingStop(elem)
	default:
		elem.prebuiltAdv = nil
		return b.routeBasicNoTicket(elem)
	}
}

// routeBasicNoTicket inserts a plain order that arrived with a
// NoCondition ticket (used by replace-in-place helpers that always pass a
// ticket pointer).
func (b *Book) routeBasicNoTicket(elem *orderQueueElem) submitResult {
	elem.ticket = nil
	return b.routeBasic(elem)
}

// routeFOK fills-or-kills: a look-ahead decides whether the book can
// satisfy the order in full right now; if not it is killed without
// resting any part of it.
func (b *Book) routeFOK(elem *orderQueueElem) submitResult {
	if !elem.hasLimit {
		return errResult(boberrors.New(boberrors.InvalidOrderType, "FOK requires a limit price"))
	}
	idx := b.grid.index(elem.limit)
	if !b.limitIsFillable(elem.side, idx, elem.size) {
		id := elem.presetID
		if id == 0 {
			id = b.allocID()
		}
		b.pushCallback(MsgKill, id, id, elem.limit, elem.size, elem.callback)
		return okResult(id)
	}
	id := elem.presetID
	if id == 0 {
		id = b.allocID()
	}
	remaining := elem.size
	if err := b.trade(elem.side, idx, false, &remaining, id, elem.callback); err != nil {
		return errResult(err)
	}
	b.aonSweep(elem.side.Opposite())
	return okResult(id)
}

// routeAON rests or trades an all-or-none limit order.
func (b *Book) routeAON(elem *orderQueueElem) submitResult {
	if !elem.hasLimit {
		return errResult(boberrors.New(boberrors.InvalidOrderType, "AON requires a limit price"))
	}
	id := elem.presetID
	if id == 0 {
		id = b.allocID()
	}
	if err := b.insertLimitAON(id, elem.side, elem.limit, elem.size, elem.callback, elem.ticket); err != nil {
		return errResult(err)
	}
	return okResult(id)
}

// routeOCO inserts the primary order, then conditionally spawns its
// sibling: if the primary was entirely consumed on arrival, the sibling
// is never created; otherwise the sibling is created via reinject and the
// two are linked reflexively through Advanced.Sibling.
func (b *Book) routeOCO(elem *orderQueueElem) submitResult {
	primaryID := elem.presetID
	if primaryID == 0 {
		primaryID = b.allocID()
	}
	primaryAdv := *elem.ticket
	primaryAdv.Sibling = nil
	if err := b.insertBasic(primaryID, elem, &primaryAdv); err != nil {
		return errResult(err)
	}
	if _, stillResting := b.cache.get(primaryID); !stillResting {
		// Primary fully filled outright: no sibling is ever created.
		return okResult(primaryID)
	}
	sp := elem.ticket.OCOSiblingParams
	siblingID := b.allocID()
	primaryEntry, _ := b.cache.get(primaryID)
	sibAdv := &Advanced{Condition: OCO, Sibling: &primaryEntry.loc}
	sibElem := &orderQueueElem{
		kind: elemBasic, presetID: siblingID, orderType: sp.InferredType(),
		side: sp.Side, size: sp.Size, limit: sp.Limit, hasLimit: sp.Limit != (Price{}),
		stop: sp.Stop, hasStop: sp.Stop != (Price{}), callback: elem.callback, prebuiltAdv: sibAdv,
	}
	res := b.reinject(sibElem)
	if res.err != nil {
		return okResult(primaryID)
	}
	sibEntry, siblingResting := b.cache.get(siblingID)
	if !siblingResting {
		// Sibling filled outright: cancel the primary and report the sibling.
		b.pullOrderLocked(primaryID, true)
		b.pushCallback(MsgTriggerOCO, primaryID, primaryID, Price{}, 0, elem.callback)
		return okResult(siblingID)
	}
	setBundleSibling(b, primaryID, &sibEntry.loc)
	return okResult(primaryID)
}

// insertBasic performs the concrete insert for elem's basic order type,
// attaching adv to the resting bundle if it rests.
func (b *Book) insertBasic(id OrderID, elem *orderQueueElem, adv *Advanced) error {
	switch elem.orderType {
	case Market:
		return b.insertMarket(id, elem.side, elem.size, elem.callback, adv)
	case Limit:
		return b.insertLimit(id, elem.side, elem.limit, elem.size, elem.callback, adv)
	case Stop:
		b.insertStop(id, elem.side, elem.stop, false, Price{}, elem.size, elem.callback, adv)
	case StopLimit:
		b.insertStop(id, elem.side, elem.stop, true, elem.limit, elem.size, elem.callback, adv)
	}
	return nil
}

// routeOTO inserts the primary; if it fills per the configured Trigger
// right away, the contingent order is spawned immediately, otherwise the
// Advanced stays attached to the resting bundle for fireBundleAdvanced to
// spawn it later.
func (b *Book) routeOTO(elem *orderQueueElem) submitResult {
	primaryID := elem.presetID
	if primaryID == 0 {
		primaryID = b.allocID()
	}
	adv := *elem.ticket
	if err := b.insertBasic(primaryID, elem, &adv); err != nil {
		return errResult(err)
	}
	if _, stillResting := b.cache.get(primaryID); !stillResting {
		b.spawnOTOChild(&adv, primaryID, elem.callback)
	}
	return okResult(primaryID)
}

func (b *Book) spawnOTOChild(adv *Advanced, parentID OrderID, cb Callback) {
	if adv.Activated {
		return
	}
	p := adv.OTOParams
	if p == nil {
		return
	}
	adv.Activated = true
	childID := b.allocID()
	childElem := &orderQueueElem{
		kind: elemBasic, presetID: childID, orderType: p.InferredType(),
		side: p.Side, size: p.Size, limit: p.Limit, hasLimit: p.Limit != (Price{}),
		stop: p.Stop, hasStop: p.Stop != (Price{}), callback: cb,
	}
	b.reinject(childElem)
	b.pushCallback(MsgTriggerOTO, parentID, childID, Price{}, p.Size, cb)
}

// routePrimaryWithChildren inserts a Bracket/TrailingBracket primary. Its
// loss/target children are spawned the first time fireBundleAdvanced
// observes a fill.
func (b *Book) routePrimaryWithChildren(elem *orderQueueElem) submitResult {
	primaryID := elem.presetID
	if primaryID == 0 {
		primaryID = b.allocID()
	}
	adv := *elem.ticket
	if err := b.insertBasic(primaryID, elem, &adv); err != nil {
		return errResult(err)
	}
	return okResult(primaryID)
}

// routeTrailingStop inserts a basic primary carrying TrailingParams; the
// trailing stop itself is spawned on full fill via fireBundleAdvanced.
func (b *Book) routeTrailingStop(elem *orderQueueElem) submitResult {
	primaryID := elem.presetID
	if primaryID == 0 {
		primaryID = b.allocID()
	}
	adv := *elem.ticket
	if err := b.insertBasic(primaryID, elem, &adv); err != nil {
		return errResult(err)
	}
	return okResult(primaryID)
}

// fireBundleAdvanced reacts to a fill against a bundle carrying a
// non-nil Advanced, per its Condition. filledNow is the
// size consumed by the fill that triggered this call, used by Bracket's
// post-activation size-adjustment path.
func (b *Book) fireBundleAdvanced(adv *Advanced, id OrderID, isFull bool, filledNow uint64, cb Callback) {
	switch adv.Condition {
	case OCO:
		b.pullAdvancedSibling(adv)
	case OTO:
		// Reaching here already means adv.Trigger was satisfied by the
		// fill that invoked fireBundleAdvanced (fillLevel gates on it).
		b.spawnOTOChild(adv, id, cb)
	case Bracket:
		b.fireBracket(adv, id, filledNow, false, cb)
	case TrailingBracket:
		b.fireBracket(adv, id, filledNow, true, cb)
	case bracketActive, trailingBracketActive:
		if isFull {
			b.pullAdvancedSibling(adv)
		}
	case TrailingStop:
		if isFull {
			b.spawnTrailingStop(adv, id, cb)
		}
	}
}

// fireBracket opens the loss/target children on first activation, or
// shrinks their resting sizes by filledNow on subsequent partial fills of
// the (already filled, now-resting-reduced) primary.
func (b *Book) fireBracket(adv *Advanced, primaryID OrderID, filledNow uint64, trailing bool, cb Callback) {
	if !adv.Activated {
		lossID := b.allocID()
		targetID := b.allocID()
		cond := bracketActive
		if trailing {
			cond = trailingBracketActive
		}
		lossElem, lossOK := b.buildBracketLeg(adv.LossParams, lossID, true, cb)
		targetElem, targetOK := b.buildBracketLeg(adv.TargetParams, targetID, false, cb)
		if lossOK {
			lossAdv := &Advanced{Condition: cond, NTicks: adv.LossParams.NTicks}
			lossElem.prebuiltAdv = lossAdv
			b.reinject(lossElem)
		}
		if targetOK {
			targetElem.prebuiltAdv = &Advanced{Condition: cond}
			b.reinject(targetElem)
		}
		lossEntry, lossResting := b.cache.get(lossID)
		targetEntry, targetResting := b.cache.get(targetID)
		if lossResting && targetResting {
			setBundleSibling(b, lossID, &targetEntry.loc)
			setBundleSibling(b, targetID, &lossEntry.loc)
		}
		adv.Activated = true
		adv.LossActiveID = lossID
		adv.TargetActiveID = targetID
		if trailing && lossResting {
			if adv.LossParams.Side == Buy {
				b.trailingBuy[lossID] = struct{}{}
			} else {
				b.trailingSell[lossID] = struct{}{}
			}
		}
		b.pushCallback(MsgTriggerBracketOpenLoss, primaryID, lossID, Price{}, adv.LossParams.Size, cb)
		b.pushCallback(MsgTriggerBracketOpenTarget, primaryID, targetID, Price{}, adv.TargetParams.Size, cb)
		return
	}
	if filledNow == 0 {
		return
	}
	b.shrinkChildBy(adv.LossActiveID, ChainStop, filledNow)
	b.shrinkChildBy(adv.TargetActiveID, ChainLimit, filledNow)
	b.pushCallback(MsgTriggerBracketAdjLoss, primaryID, adv.LossActiveID, Price{}, filledNow, cb)
	b.pushCallback(MsgTriggerBracketAdjTarget, primaryID, adv.TargetActiveID, Price{}, filledNow, cb)
}

// buildBracketLeg resolves a bracket leg's by-price or by-ticks
// parameters into a queue element. By-price legs (Bracket) use whichever
// of Limit/Stop the ticket populated (so a stop-limit loss leg works
// naturally). By-ticks legs (TrailingBracket) are anchored off the
// current last price and rest as a plain stop (asStop) or limit; if there
// is no last trade yet the leg cannot be placed and ok is false.
func (b *Book) buildBracketLeg(p *OrderParameters, id OrderID, asStop bool, cb Callback) (*orderQueueElem, bool) {
	if !p.ByTicks {
		ty := p.InferredType()
		return &orderQueueElem{
			kind: elemBasic, presetID: id, orderType: ty,
			side: p.Side, size: p.Size, limit: p.Limit, hasLimit: p.Limit != (Price{}),
			stop: p.Stop, hasStop: p.Stop != (Price{}), callback: cb,
		}, true
	}
	if !b.hasLast {
		return nil, false
	}
	idx := b.last + int(p.NTicks)
	if !b.grid.inBounds(idx) {
		return nil, false
	}
	price := b.grid.price(idx)
	if asStop {
		return &orderQueueElem{kind: elemBasic, presetID: id, orderType: Stop, side: p.Side, size: p.Size, stop: price, hasStop: true, callback: cb}, true
	}
	return &orderQueueElem{kind: elemBasic, presetID: id, orderType: Limit, side: p.Side, size: p.Size, limit: price, hasLimit: true, callback: cb}, true
}

// shrinkChildBy reduces a resting bracket child's size by delta, erasing
// it outright if that would exhaust it.
func (b *Book) shrinkChildBy(id OrderID, kind ChainKind, delta uint64) {
	e, ok := b.cache.get(id)
	if !ok {
		return
	}
	switch kind {
	case ChainStop:
		sb := e.elem.Value.(*StopBundle)
		if delta >= sb.Size {
			b.pullOrderLocked(id, true)
			return
		}
		sb.Size -= delta
	case ChainLimit:
		lb := e.elem.Value.(*LimitBundle)
		if delta >= lb.Size {
			b.pullOrderLocked(id, true)
			return
		}
		lb.Size -= delta
	}
}

// spawnTrailingStop opens the trailing stop leg for a TrailingStop
// primary that has fully filled, registering it in the book's trailing
// sets so adjustTrailingStops keeps it repriced.
func (b *Book) spawnTrailingStop(adv *Advanced, primaryID OrderID, cb Callback) {
	p := adv.TrailingParams
	if !b.hasLast {
		return
	}
	stopIdx := b.last + int(p.NTicks)
	if !b.grid.inBounds(stopIdx) {
		return
	}
	id := b.allocID()
	stopAdv := &Advanced{Condition: trailingStopActive, NTicks: p.NTicks}
	elem := &orderQueueElem{kind: elemBasic, presetID: id, orderType: Stop, side: p.Side, size: p.Size, stop: b.grid.price(stopIdx), hasStop: true, callback: cb, prebuiltAdv: stopAdv}
	b.reinject(elem)
	if p.Side == Buy {
		b.trailingBuy[id] = struct{}{}
	} else {
		b.trailingSell[id] = struct{}{}
	}
	b.pushCallback(MsgTriggerTrailingStopOpenLoss, primaryID, id, b.grid.price(stopIdx), p.Size, cb)
}

// setBundleSibling attaches or updates a resting bundle's Advanced
// sibling location, creating a minimal Advanced for OCO if none existed
// yet.
func setBundleSibling(b *Book, id OrderID, sib *OrderLocation) bool {
	e, ok := b.cache.get(id)
	if !ok {
		return false
	}
	var adv **Advanced
	switch e.loc.Chain {
	case ChainLimit:
		adv = &e.elem.Value.(*LimitBundle).Adv
	case ChainStop:
		adv = &e.elem.Value.(*StopBundle).Adv
	case ChainAONBuy, ChainAONSell:
		adv = &e.elem.Value.(*AONBundle).Adv
	default:
		return false
	}
	if *adv == nil {
		*adv = &Advanced{Condition: OCO}
	}
	(*adv).Sibling = sib
	return true
}
