package orderbook

import (
	"container/list"

	boberrors "github.com/kestrel-trading/orderbook/internal/errors"
	"github.com/kestrel-trading/orderbook/internal/tickprice"
)

// level owns up to one of each of {limit chain, stop chain, buy-AON chain,
// sell-AON chain}. Chains are lazily allocated: nil until first push, and
// dropped back to nil once emptied.
type level struct {
	limit   *list.List // of *LimitBundle
	stop    *list.List // of *StopBundle
	aonBuy  *list.List // of *AONBundle
	aonSell *list.List // of *AONBundle
}

// bytesPerLevel approximates the resident cost of one level for the
// resource-limit check: four nil-able list headers plus
// slice overhead. Deliberately conservative (over-counts empty levels) so
// grow never silently exceeds the configured cap.
const bytesPerLevel = 256

// grid is the contiguous, index-addressable price-level array spanning
// [min, max]. Indices are tick-distance from base; growth preserves all
// existing chains and is always followed by the caller rewriting cached
// indices by the known offset.
type grid struct {
	ratio    tickprice.Ratio
	base     Price // price at index 0
	levels   []level
	maxBytes uint64
}

func newGrid(ratio tickprice.Ratio, min, max Price, maxBytes uint64) (*grid, error) {
	n := tickprice.TicksBetween(min, max) + 1
	if n < 3 {
		return nil, boberrors.New(boberrors.InvalidPrice, "ticks in range must be at least 3")
	}
	g := &grid{ratio: ratio, base: min, maxBytes: maxBytes}
	if err := g.checkBudget(int(n)); err != nil {
		return nil, err
	}
	g.levels = make([]level, n)
	return g, nil
}

func (g *grid) checkBudget(nLevels int) error {
	if g.maxBytes == 0 {
		return nil
	}
	if uint64(nLevels)*bytesPerLevel > g.maxBytes {
		return boberrors.Newf(boberrors.ResourceExhausted, "grid of %d levels exceeds memory cap of %d bytes", nLevels, g.maxBytes)
	}
	return nil
}

// len returns the number of levels currently in the grid.
func (g *grid) len() int { return len(g.levels) }

// minPrice is the price at index 0.
func (g *grid) minPrice() Price { return g.base }

// maxPrice is the price at the last index.
func (g *grid) maxPrice() Price { return g.base.AddTicks(int64(g.len() - 1)) }

// index returns the grid index for a price, which may be out of [0, len).
func (g *grid) index(p Price) int { return int(tickprice.TicksBetween(g.base, p)) }

// price returns the grid price at an index.
func (g *grid) price(idx int) Price { return g.base.AddTicks(int64(idx)) }

// inBounds reports whether idx addresses a live level.
func (g *grid) inBounds(idx int) bool { return idx >= 0 && idx < g.len() }

// isValidPrice reports whether p lies on the grid within [min, max].
func (g *grid) isValidPrice(p Price) bool {
	if p.Ratio != g.ratio {
		return false
	}
	idx := g.index(p)
	return g.inBounds(idx)
}

// growAbove appends levels so the grid's max price is at least newMax. It
// returns the number of levels appended (0 if none were needed); indices
// below the old length are unaffected, so callers never need to rewrite
// lookup-cache indices after growAbove. A sentinel equal to the old
// length (the book's empty ask) now addresses a real level and must be
// moved to the new length by the caller.
func (g *grid) growAbove(newMax Price) (int, error) {
	curMax := g.maxPrice()
	if !newMax.Greater(curMax) {
		return 0, nil
	}
	add := int(tickprice.TicksBetween(curMax, newMax))
	if err := g.checkBudget(g.len() + add); err != nil {
		return 0, err
	}
	g.levels = append(g.levels, make([]level, add)...)
	return add, nil
}

// growBelow prepends levels so the grid's min price is at most newMin. It
// returns the number of levels prepended; callers MUST add this offset to
// every cached index (bid/ask/last/extrema and every lookup-cache entry)
// to keep them pointing at the same price.
func (g *grid) growBelow(newMin Price) (int, error) {
	curMin := g.minPrice()
	if !newMin.Less(curMin) {
		return 0, nil
	}
	add := int(tickprice.TicksBetween(newMin, curMin))
	if err := g.checkBudget(g.len() + add); err != nil {
		return 0, err
	}
	grown := make([]level, add+g.len())
	copy(grown[add:], g.levels)
	g.levels = grown
	g.base = newMin
	return add, nil
}

// ticksInRange returns the number of grid points between two prices,
// inclusive.
func ticksInRange(a, b Price) int64 {
	return tickprice.TicksBetween(a, b) + 1
}

// tickMemoryRequired estimates the bytes a grid spanning [min, max] would
// occupy.
func tickMemoryRequired(min, max Price) uint64 {
	n := ticksInRange(min, max)
	if n < 0 {
		return 0
	}
	return uint64(n) * bytesPerLevel
}
