package orderbook

import (
	"go.uber.org/zap"

	boberrors "github.com/kestrel-trading/orderbook/internal/errors"
)

// process routes one dequeued element under the master lock. It is the single place where the dispatcher mutates book state.
func (b *Book) process(elem *orderQueueElem) submitResult {
	switch elem.kind {
	case elemCancel:
		return boolResult(b.pullOrderLocked(elem.cancelID, false))
	case elemGrow:
		if elem.growAbove {
			noAsk := b.ask == b.grid.len()
			if _, err := b.grid.growAbove(elem.growPrice); err != nil {
				return errResult(err)
			}
			if noAsk {
				b.ask = b.grid.len()
			}
			return okResult(0)
		}
		offset, err := b.grid.growBelow(elem.growPrice)
		if err != nil {
			return errResult(err)
		}
		b.shiftIndices(offset)
		return okResult(0)
	case elemBasic:
		return b.routeBasic(elem)
	default:
		return okResult(0)
	}
}

// shiftIndices rewrites every cached index by offset after growBelow
// prepends levels.
func (b *Book) shiftIndices(offset int) {
	if offset == 0 {
		return
	}
	if b.bid != noBid {
		b.bid += offset
	}
	if b.ask != b.grid.len()-offset {
		b.ask += offset
	} else {
		b.ask = b.grid.len()
	}
	if b.hasLast {
		b.last += offset
	}
	shiftBound := func(lo, hi *int) {
		if *lo != noLow {
			*lo += offset
		}
		if *hi != noHigh {
			*hi += offset
		}
	}
	shiftBound(&b.lowBuyStop, &b.highBuyStop)
	shiftBound(&b.lowSellStop, &b.highSellStop)
	shiftBound(&b.lowBuyAON, &b.highBuyAON)
	shiftBound(&b.lowSellAON, &b.highSellAON)
	b.cache.shiftAll(offset)
}

// routeBasic classifies and dispatches market/limit/stop/stop-limit
// submissions, with or without an advanced ticket.
func (b *Book) routeBasic(elem *orderQueueElem) submitResult {
	if elem.hasLimit && !b.grid.isValidPrice(elem.limit) {
		return errResult(invalidPriceErr(elem.limit))
	}
	if elem.hasStop && !b.grid.isValidPrice(elem.stop) {
		return errResult(invalidPriceErr(elem.stop))
	}
	// A NoCondition ticket comes back through routeBasic without its ticket
	// and is counted on that pass.
	if b.metrics != nil && (elem.ticket == nil || elem.ticket.Condition != NoCondition) {
		b.metrics.OrdersProcessed.WithLabelValues(elem.orderType.String()).Inc()
	}
	if elem.ticket != nil {
		if err := validateTicket(elem.orderType, elem.ticket); err != nil {
			return errResult(err)
		}
		return b.routeAdvanced(elem)
	}
	id := elem.presetID
	if id == 0 {
		id = b.allocID()
	}
	adv := elem.prebuiltAdv
	var err error
	switch elem.orderType {
	case Market:
		err = b.insertMarket(id, elem.side, elem.size, elem.callback, adv)
	case Limit:
		err = b.insertLimit(id, elem.side, elem.limit, elem.size, elem.callback, adv)
	case Stop:
		b.insertStop(id, elem.side, elem.stop, false, Price{}, elem.size, elem.callback, adv)
	case StopLimit:
		b.insertStop(id, elem.side, elem.stop, true, elem.limit, elem.size, elem.callback, adv)
	}
	if err != nil {
		return errResult(err)
	}
	return okResult(id)
}

func invalidPriceErr(p Price) error {
	return boberrors.Newf(boberrors.InvalidPrice, "price %.6f is off the grid or out of range", p.Float())
}

func (b *Book) logDebug(msg string, fields ...zap.Field) {
	if b.logger != nil {
		b.logger.Debug(msg, fields...)
	}
}
