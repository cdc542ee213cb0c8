package orderbook

import (
	"container/list"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushBackLazilyAllocates(t *testing.T) {
	var lp *list.List
	assert.True(t, chainEmpty(lp))
	assert.Equal(t, 0, chainLen(lp))

	e1 := pushBack(&lp, &LimitBundle{ID: 1, Size: 10})
	assert.NotNil(t, lp)
	assert.False(t, chainEmpty(lp))
	assert.Equal(t, 1, chainLen(lp))

	pushBack(&lp, &LimitBundle{ID: 2, Size: 20})
	assert.Equal(t, 2, chainLen(lp))

	eraseElem(&lp, e1)
	assert.Equal(t, 1, chainLen(lp))
	assert.NotNil(t, lp)
}

func TestEraseElemDropsListWhenEmpty(t *testing.T) {
	var lp *list.List
	e := pushBack(&lp, &LimitBundle{ID: 1, Size: 10})
	eraseElem(&lp, e)
	assert.Nil(t, lp)
	assert.True(t, chainEmpty(lp))
}

func TestEraseElemOnNilListIsNoop(t *testing.T) {
	var lp *list.List
	assert.NotPanics(t, func() { eraseElem(&lp, nil) })
}

func TestChainSizeSumsAcrossBundleTypes(t *testing.T) {
	var lp *list.List
	assert.Equal(t, uint64(0), chainSize(lp))

	pushBack(&lp, &LimitBundle{ID: 1, Size: 10})
	pushBack(&lp, &LimitBundle{ID: 2, Size: 15})
	assert.Equal(t, uint64(25), chainSize(lp))

	var sp *list.List
	pushBack(&sp, &StopBundle{ID: 3, Size: 5})
	assert.Equal(t, uint64(5), chainSize(sp))

	var ap *list.List
	pushBack(&ap, &AONBundle{ID: 4, Size: 7})
	pushBack(&ap, &AONBundle{ID: 5, Size: 3})
	assert.Equal(t, uint64(10), chainSize(ap))
}

func TestGridChainAccessors(t *testing.T) {
	g, err := newGrid(centRatio(), px(1.00), px(2.00), 0)
	assert.NoError(t, err)
	idx := g.index(px(1.50))

	assert.Nil(t, g.limitChainAt(idx))
	pushBack(&g.levels[idx].limit, &LimitBundle{ID: 1, Size: 1})
	assert.Equal(t, uint64(1), chainSize(g.limitChainAt(idx)))

	assert.Nil(t, g.stopChainAt(idx))
	pushBack(&g.levels[idx].stop, &StopBundle{ID: 2, Size: 2})
	assert.Equal(t, uint64(2), chainSize(g.stopChainAt(idx)))

	assert.Nil(t, g.aonChainAt(idx, Buy))
	assert.Nil(t, g.aonChainAt(idx, Sell))
	pushBack(&g.levels[idx].aonBuy, &AONBundle{ID: 3, Size: 3})
	pushBack(&g.levels[idx].aonSell, &AONBundle{ID: 4, Size: 4})
	assert.Equal(t, uint64(3), chainSize(g.aonChainAt(idx, Buy)))
	assert.Equal(t, uint64(4), chainSize(g.aonChainAt(idx, Sell)))
}
