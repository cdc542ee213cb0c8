package orderbook

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-trading/orderbook/internal/tickprice"
)

func centRatio() tickprice.Ratio { return tickprice.Ratio{Num: 1, Den: 100} }

func px(v float64) Price { return tickprice.FromFloat(centRatio(), v, math.Round) }

func newTestBook(t *testing.T) *Book {
	t.Helper()
	b, err := New(Config{
		Min:       px(0.01),
		Max:       px(10000.00),
		Ratio:     centRatio(),
		QueueSize: 64,
	})
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

type recordedCallback struct {
	msg   MessageKind
	price Price
	size  uint64
}

func collectCallback(out *[]recordedCallback) Callback {
	return func(msg MessageKind, idOld, idNew OrderID, price Price, size uint64) {
		*out = append(*out, recordedCallback{msg: msg, price: price, size: size})
	}
}
