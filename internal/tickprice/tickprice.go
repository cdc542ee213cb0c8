// Package tickprice implements the fixed, discrete price grid abstraction
// used by the order book: prices are represented as a whole-unit part plus
// a ticks-within-unit part, under a construction-time tick ratio 1/D.
//
// A templated TickRatio parameter would be the natural shape in a language
// with non-type template parameters; Go has none, so the ratio travels on
// the value instead (captured once at book construction and reused for
// every Tick it produces) rather than in the type.
package tickprice

import (
	"math"

	boberrors "github.com/kestrel-trading/orderbook/internal/errors"
)

// Ratio describes a tick size of Num/Den, e.g. Num=1, Den=100 is a cent
// tick on a dollar-denominated price.
type Ratio struct {
	Num int64
	Den int64
}

// MaxDen is the largest allowed denominator.
const MaxDen = 1_000_000

// Validate checks the ratio is within [1/1, 1/1000000] and evenly
// divisible.
func (r Ratio) Validate() error {
	if r.Num <= 0 || r.Den <= 0 {
		return boberrors.New(boberrors.InvalidPrice, "tick ratio must have positive numerator and denominator")
	}
	if r.Num > r.Den {
		return boberrors.New(boberrors.InvalidPrice, "tick ratio must not exceed 1/1")
	}
	if r.Den > MaxDen*r.Num {
		return boberrors.New(boberrors.InvalidPrice, "tick ratio denominator exceeds 1,000,000 after reduction")
	}
	if r.Den%r.Num != 0 {
		return boberrors.New(boberrors.InvalidPrice, "tick ratio denominator must be a multiple of the numerator")
	}
	return nil
}

// TicksPerUnit returns D/num, the number of ticks in one whole unit.
func (r Ratio) TicksPerUnit() int64 { return r.Den / r.Num }

// TickSize returns num/den as a float64.
func (r Ratio) TickSize() float64 { return float64(r.Num) / float64(r.Den) }

// precision derives the rounding precision used for real<->tick
// round-tripping: max(5, round(log10(ticks_per_unit))), mirroring
// tp::round_precision in tick_price.hpp, bounded so 10^precision does not
// overflow an int64.
func (r Ratio) precision() int {
	p := int(math.Round(math.Log10(float64(r.TicksPerUnit()))))
	if p < 5 {
		p = 5
	}
	if p > 9 {
		p = 9
	}
	return p
}

// Tick is a price on the grid defined by a Ratio: Whole whole units plus
// Ticks ticks-within-unit, with 0 <= Ticks < TicksPerUnit after
// normalization.
type Tick struct {
	Ratio Ratio
	Whole int64
	Ticks int64
}

// New builds a normalized Tick from a whole part and a (possibly
// unnormalized, possibly negative) ticks part.
func New(r Ratio, whole, ticks int64) Tick {
	perUnit := r.TicksPerUnit()
	quot := ticks / perUnit
	rem := ticks % perUnit
	whole += quot
	if rem < 0 {
		whole--
		rem += perUnit
	}
	return Tick{Ratio: r, Whole: whole, Ticks: rem}
}

// FromTicks builds a normalized Tick directly from a total tick count.
func FromTicks(r Ratio, ticks int64) Tick {
	return New(r, 0, ticks)
}

// FromFloat rounds a real number onto the grid, using the supplied
// rounding function (callers typically pass math.Round).
func FromFloat(r Ratio, value float64, round func(float64) float64) Tick {
	if round == nil {
		round = math.Round
	}
	whole := int64(value)
	if value < 0 && float64(whole) != value {
		whole--
	}
	perUnit := r.TicksPerUnit()
	ticks := int64(round((value - float64(whole)) * float64(perUnit)))
	if ticks == perUnit {
		whole++
		ticks = 0
	}
	if ticks < 0 {
		whole--
		ticks += perUnit
	}
	return Tick{Ratio: r, Whole: whole, Ticks: ticks}
}

// AsTicks returns the total number of ticks from zero.
func (t Tick) AsTicks() int64 {
	return t.Ratio.TicksPerUnit()*t.Whole + t.Ticks
}

// Float converts the Tick back to a real number, rounded to the ratio's
// derived precision so that real->tick->real round-trips are stable.
func (t Tick) Float() float64 {
	radj := math.Pow(10, float64(t.Ratio.precision()))
	raw := float64(t.Whole) + float64(t.Ticks)*t.Ratio.TickSize()
	return math.Round(raw*radj) / radj
}

// Add returns t + other, renormalized.
func (t Tick) Add(other Tick) Tick {
	return New(t.Ratio, t.Whole+other.Whole, t.Ticks+other.Ticks)
}

// Sub returns t - other, renormalized.
func (t Tick) Sub(other Tick) Tick {
	return New(t.Ratio, t.Whole-other.Whole, t.Ticks-other.Ticks)
}

// AddTicks returns t shifted by a signed number of ticks.
func (t Tick) AddTicks(n int64) Tick {
	return New(t.Ratio, t.Whole, t.Ticks+n)
}

// Cmp returns -1, 0, or 1 as t is less than, equal to, or greater than
// other, comparing whole first then ticks.
func (t Tick) Cmp(other Tick) int {
	if t.Whole != other.Whole {
		if t.Whole < other.Whole {
			return -1
		}
		return 1
	}
	switch {
	case t.Ticks < other.Ticks:
		return -1
	case t.Ticks > other.Ticks:
		return 1
	default:
		return 0
	}
}

// Less reports whether t < other.
func (t Tick) Less(other Tick) bool { return t.Cmp(other) < 0 }

// LessEq reports whether t <= other.
func (t Tick) LessEq(other Tick) bool { return t.Cmp(other) <= 0 }

// Greater reports whether t > other.
func (t Tick) Greater(other Tick) bool { return t.Cmp(other) > 0 }

// GreaterEq reports whether t >= other.
func (t Tick) GreaterEq(other Tick) bool { return t.Cmp(other) >= 0 }

// Equal reports whether t == other.
func (t Tick) Equal(other Tick) bool { return t.Cmp(other) == 0 }

// TicksBetween returns b.AsTicks() - a.AsTicks(), the signed tick
// distance from a to b.
func TicksBetween(a, b Tick) int64 {
	return b.AsTicks() - a.AsTicks()
}
