package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridBounds(t *testing.T) {
	g, err := newGrid(centRatio(), px(1.00), px(2.00), 0)
	require.NoError(t, err)
	assert.Equal(t, 101, g.len())
	assert.Equal(t, px(1.00), g.minPrice())
	assert.Equal(t, px(2.00), g.maxPrice())
}

func TestNewGridRejectsTooFewTicks(t *testing.T) {
	_, err := newGrid(centRatio(), px(1.00), px(1.01), 0)
	assert.Error(t, err)
}

func TestNewGridRejectsBudget(t *testing.T) {
	_, err := newGrid(centRatio(), px(1.00), px(100.00), 64)
	assert.Error(t, err)
}

func TestGridIndexPriceRoundTrip(t *testing.T) {
	g, err := newGrid(centRatio(), px(1.00), px(2.00), 0)
	require.NoError(t, err)
	idx := g.index(px(1.50))
	assert.Equal(t, px(1.50), g.price(idx))
	assert.True(t, g.inBounds(idx))
	assert.False(t, g.inBounds(-1))
	assert.False(t, g.inBounds(g.len()))
}

func TestGridIsValidPrice(t *testing.T) {
	g, err := newGrid(centRatio(), px(1.00), px(2.00), 0)
	require.NoError(t, err)
	assert.True(t, g.isValidPrice(px(1.50)))
	assert.False(t, g.isValidPrice(px(5.00)))
	other := px(1.50)
	other.Ratio.Den = 10
	assert.False(t, g.isValidPrice(other))
}

func TestGridGrowAbove(t *testing.T) {
	g, err := newGrid(centRatio(), px(1.00), px(2.00), 0)
	require.NoError(t, err)
	n, err := g.growAbove(px(3.00))
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, px(3.00), g.maxPrice())
	// indices below the old length are unaffected
	assert.Equal(t, px(1.50), g.price(g.index(px(1.50))))
}

func TestGridGrowAboveNoop(t *testing.T) {
	g, err := newGrid(centRatio(), px(1.00), px(2.00), 0)
	require.NoError(t, err)
	n, err := g.growAbove(px(1.50))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGridGrowBelowShiftsBase(t *testing.T) {
	g, err := newGrid(centRatio(), px(1.00), px(2.00), 0)
	require.NoError(t, err)
	oldTopIdx := g.index(px(2.00))
	n, err := g.growBelow(px(0.50))
	require.NoError(t, err)
	assert.Equal(t, 50, n)
	assert.Equal(t, px(0.50), g.minPrice())
	// a cached index for the old top must be shifted by n to remain valid
	assert.Equal(t, px(2.00), g.price(oldTopIdx+n))
}

func TestTicksInRangeAndMemory(t *testing.T) {
	assert.Equal(t, int64(3), ticksInRange(px(1.00), px(1.02)))
	assert.Equal(t, uint64(3)*bytesPerLevel, tickMemoryRequired(px(1.00), px(1.02)))
}
