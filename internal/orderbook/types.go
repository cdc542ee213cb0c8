// Package orderbook implements a single-symbol, in-memory limit order book
// and matching engine on a fixed discrete price grid: price levels, chain
// containers, a single-dispatcher mutation loop, the trade/matching
// routine, stop and trailing-stop machinery, the advanced-order (OCO/OTO/
// FOK/AON/bracket/trailing) state machines, and deferred callback
// draining.
package orderbook

import (
	"github.com/kestrel-trading/orderbook/internal/tickprice"
)

// Price is a point on the book's fixed tick grid.
type Price = tickprice.Tick

// OrderID is a monotonically increasing identifier allocated by the book.
// It is never reused within a book's lifetime.
type OrderID uint64

// Side is the side of an order.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType is the basic order type.
type OrderType uint8

const (
	Market OrderType = iota
	Limit
	Stop
	StopLimit
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "market"
	case Limit:
		return "limit"
	case Stop:
		return "stop"
	case StopLimit:
		return "stop_limit"
	default:
		return "unknown"
	}
}

// Condition is the advanced-order condition attached to a resting order.
type Condition uint8

const (
	NoCondition Condition = iota
	OCO
	OTO
	FOK
	AON
	Bracket
	TrailingStop
	TrailingBracket

	// internal "active" post-activation variants
	bracketActive
	trailingBracketActive
	trailingStopActive
)

func (c Condition) String() string {
	switch c {
	case NoCondition:
		return "none"
	case OCO:
		return "oco"
	case OTO:
		return "oto"
	case FOK:
		return "fok"
	case AON:
		return "aon"
	case Bracket:
		return "bracket"
	case TrailingStop:
		return "trailing_stop"
	case TrailingBracket:
		return "trailing_bracket"
	case bracketActive:
		return "bracket_active"
	case trailingBracketActive:
		return "trailing_bracket_active"
	case trailingStopActive:
		return "trailing_stop_active"
	default:
		return "unknown"
	}
}

// Trigger controls when an advanced condition fires relative to the host
// order's fill progress.
type Trigger uint8

const (
	NoTrigger Trigger = iota
	FillPartial
	FillFull
)

// ChainKind identifies one of the (up to) four chains a price level owns.
type ChainKind uint8

const (
	ChainLimit ChainKind = iota
	ChainStop
	ChainAONBuy
	ChainAONSell
)

// MessageKind is the closed set of advanced-order/callback message kinds.
type MessageKind uint8

const (
	MsgCancel MessageKind = iota
	MsgFill
	MsgStopToLimit
	MsgStopToMarket
	MsgTriggerOCO
	MsgTriggerOTO
	MsgTriggerBracketOpen
	MsgTriggerBracketOpenTarget
	MsgTriggerBracketOpenLoss
	MsgTriggerBracketClose
	MsgTriggerBracketAdjTarget
	MsgTriggerBracketAdjLoss
	MsgTriggerTrailingStopOpen
	MsgTriggerTrailingStopOpenLoss
	MsgTriggerTrailingStopAdjLoss
	MsgTriggerTrailingStopClose
	MsgAdjustTrailingStop
	MsgKill
)

func (m MessageKind) String() string {
	names := [...]string{
		"cancel", "fill", "stop_to_limit", "stop_to_market",
		"trigger_OCO", "trigger_OTO",
		"trigger_BRACKET_open", "trigger_BRACKET_open_target", "trigger_BRACKET_open_loss",
		"trigger_BRACKET_close", "trigger_BRACKET_adj_target", "trigger_BRACKET_adj_loss",
		"trigger_TRAILING_STOP_open", "trigger_TRAILING_STOP_open_loss",
		"trigger_TRAILING_STOP_adj_loss", "trigger_TRAILING_STOP_close",
		"adjust_trailing_stop", "kill",
	}
	if int(m) < len(names) {
		return names[m]
	}
	return "unknown"
}

// Callback is the fill/cancel/trigger notification signature. idOld and
// idNew differ when the engine rewrites an order's id (stop trigger,
// bracket/trailing activation); consumers must key identity on the latest
// id reported. price/size are zero when not applicable.
type Callback func(msg MessageKind, idOld, idNew OrderID, price Price, size uint64)

// OrderLocation names where a resting bundle lives: which chain, which
// price-level index, and its id. Locations are values, never pointers into
// chain storage, so they stay valid across grid growth.
type OrderLocation struct {
	Chain ChainKind
	Level int
	ID    OrderID
}

// OrderParameters describes a linked/contingent order, either "by price"
// (an absolute limit/stop price) or "by ticks" (a signed offset used by
// trailing orders). Exactly one of the two representations is populated,
// indicated by ByTicks.
type OrderParameters struct {
	ByTicks bool

	Side Side
	Size uint64

	// "by price" fields. A zero Price (Whole=0,Ticks=0) means "unset" —
	// safe because Construct requires min price > 0, so 0.0 is never a
	// valid grid price.
	Limit Price
	Stop  Price

	// "by ticks" field: signed offset from the live reference price.
	NTicks int64
}

// InferredType deduces the order type a "by price" OrderParameters
// describes, from which of Limit/Stop are set.
func (p *OrderParameters) InferredType() OrderType {
	hasLimit := p.Limit != (Price{})
	hasStop := p.Stop != (Price{})
	switch {
	case hasStop && hasLimit:
		return StopLimit
	case hasStop:
		return Stop
	case hasLimit:
		return Limit
	default:
		return Market
	}
}

// Advanced is the tagged-union payload held inside any resting bundle
// whose Condition is not NoCondition. It fans out on Condition rather than
// using inheritance.
type Advanced struct {
	Condition Condition
	Trigger   Trigger

	// Activated marks that Bracket/TrailingBracket children have been
	// spawned at least once (so later partial fills of the primary adjust
	// the existing children instead of spawning new ones).
	Activated bool

	// OCO, bracketActive, trailingBracketActive (set on both legs): location
	// of the linked sibling order. Reflexive: pulling either pulls both.
	Sibling *OrderLocation

	// OCO (pre-activation, ticket-time only): parameters describing the
	// sibling order to create if the primary doesn't fully fill outright.
	OCOSiblingParams *OrderParameters

	// OTO: parameters to spawn when Trigger fires.
	OTOParams *OrderParameters

	// TrailingStop (attached to a basic primary order, pre-activation):
	// by-ticks parameters for the stop to spawn on full fill.
	TrailingParams *OrderParameters

	// Bracket / TrailingBracket, held on the PRIMARY order: loss-stop and
	// target-limit parameters, plus the spawned children's ids once
	// activated (so later partial fills can route adjustments).
	LossParams     *OrderParameters
	TargetParams   *OrderParameters
	LossActiveID   OrderID
	TargetActiveID OrderID

	// trailingBracketActive / trailingStopActive, held on the STOP leg:
	// signed tick offset recomputed against last on every trade.
	NTicks int64
}

// LimitBundle is a resting limit order.
type LimitBundle struct {
	ID       OrderID
	Side     Side
	Size     uint64
	Callback Callback
	Adv      *Advanced
	IsAON    bool
}

// StopBundle is a resting stop (or stop-limit) order.
type StopBundle struct {
	ID       OrderID
	Side     Side
	Size     uint64
	HasLimit bool
	Limit    Price
	Callback Callback
	Adv      *Advanced
}

// AONBundle is a resting all-or-none order.
type AONBundle struct {
	ID       OrderID
	Side     Side
	Size     uint64
	Callback Callback
	Adv      *Advanced
}

// TimeSaleEntry is one append-only record of a completed match.
type TimeSaleEntry struct {
	ID    string // ksuid, time-sortable
	Price Price
	Size  uint64
}

// OrderInfo is the public snapshot returned by GetOrderInfo.
type OrderInfo struct {
	Type      OrderType
	Side      Side
	Limit     Price
	Stop      Price
	Size      uint64
	Condition Condition
	Trigger   Trigger
}
