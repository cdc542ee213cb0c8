package orderbook

import (
	"container/list"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupCachePutGet(t *testing.T) {
	c := newLookupCache()
	l := list.New()
	elem := l.PushBack(&LimitBundle{ID: 1, Size: 10})
	loc := OrderLocation{Chain: ChainLimit, Level: 5, ID: 1}
	c.put(1, loc, elem)

	got, ok := c.get(1)
	require.True(t, ok)
	assert.Equal(t, loc, got.loc)
	assert.Same(t, elem, got.elem)

	_, ok = c.get(2)
	assert.False(t, ok)
}

func TestLookupCacheEvict(t *testing.T) {
	c := newLookupCache()
	l := list.New()
	elem := l.PushBack(&LimitBundle{ID: 1, Size: 10})
	c.put(1, OrderLocation{Chain: ChainLimit, Level: 0, ID: 1}, elem)

	c.evict(1)
	_, ok := c.get(1)
	assert.False(t, ok)
}

func TestLookupCacheShiftAll(t *testing.T) {
	c := newLookupCache()
	l := list.New()
	e1 := l.PushBack(&LimitBundle{ID: 1, Size: 1})
	e2 := l.PushBack(&LimitBundle{ID: 2, Size: 2})
	c.put(1, OrderLocation{Chain: ChainLimit, Level: 10, ID: 1}, e1)
	c.put(2, OrderLocation{Chain: ChainStop, Level: 20, ID: 2}, e2)

	c.shiftAll(5)

	e1Loc, _ := c.get(1)
	e2Loc, _ := c.get(2)
	assert.Equal(t, 15, e1Loc.loc.Level)
	assert.Equal(t, 25, e2Loc.loc.Level)

	c.shiftAll(0)
	e1Loc, _ = c.get(1)
	assert.Equal(t, 15, e1Loc.loc.Level)
}
