package orderbook

import "container/list"

// pushBack appends v to *lp, lazily allocating the list on first use.
func pushBack[T any](lp **list.List, v T) *list.Element {
	if *lp == nil {
		*lp = list.New()
	}
	return (*lp).PushBack(v)
}

// eraseElem removes e from *lp and drops the list back to nil once empty,
// so an emptied chain releases its allocation.
func eraseElem(lp **list.List, e *list.Element) {
	if *lp == nil {
		return
	}
	(*lp).Remove(e)
	if (*lp).Len() == 0 {
		*lp = nil
	}
}

func chainEmpty(lp *list.List) bool { return lp == nil || lp.Len() == 0 }

func chainLen(lp *list.List) int {
	if lp == nil {
		return 0
	}
	return lp.Len()
}

// sizer is implemented by every bundle type a chain can hold.
type sizer interface {
	sizeOf() uint64
}

// chainSize sums Size across every bundle resting in *lp.
func chainSize(lp *list.List) uint64 {
	if lp == nil {
		return 0
	}
	var total uint64
	for e := lp.Front(); e != nil; e = e.Next() {
		total += e.Value.(sizer).sizeOf()
	}
	return total
}

func (b *LimitBundle) sizeOf() uint64 { return b.Size }
func (b *StopBundle) sizeOf() uint64  { return b.Size }
func (b *AONBundle) sizeOf() uint64   { return b.Size }

// limitChainAt returns the *list.List of resting limit bundles at idx,
// nil if none.
func (g *grid) limitChainAt(idx int) *list.List { return g.levels[idx].limit }

// stopChainAt returns the *list.List of resting stop bundles at idx.
func (g *grid) stopChainAt(idx int) *list.List { return g.levels[idx].stop }

// aonChainAt returns the *list.List of resting AON bundles at idx for the
// given side.
func (g *grid) aonChainAt(idx int, side Side) *list.List {
	if side == Buy {
		return g.levels[idx].aonBuy
	}
	return g.levels[idx].aonSell
}
