package venue

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBidQueueOrdering(t *testing.T) {
	q := newBidQueue()

	q.insertOrder(&Order{ID: 101, Seq: 1, Price: decimal.NewFromInt(10), Remaining: decimal.NewFromInt(5)}, false)
	q.insertOrder(&Order{ID: 201, Seq: 2, Price: decimal.NewFromInt(20), Remaining: decimal.NewFromInt(10)}, false)
	q.insertOrder(&Order{ID: 301, Seq: 3, Price: decimal.NewFromInt(30), Remaining: decimal.NewFromInt(10)}, false)
	q.insertOrder(&Order{ID: 202, Seq: 4, Price: decimal.NewFromInt(20), Remaining: decimal.NewFromInt(100)}, false)

	assert.Equal(t, int64(4), q.orderCount())
	assert.Equal(t, int64(3), q.depthCount())

	ord := q.popHeadOrder()
	assert.Equal(t, uint64(301), ord.ID)
	assert.Equal(t, "30", ord.Price.String())

	ord = q.popHeadOrder()
	assert.Equal(t, uint64(201), ord.ID)
	assert.Equal(t, "20", ord.Price.String())

	// A partially filled maker goes back to the front of its level.
	ord.Remaining = decimal.NewFromInt(2)
	q.insertOrder(ord, true)

	ord = q.popHeadOrder()
	assert.Equal(t, uint64(201), ord.ID)
	assert.Equal(t, "2", ord.Remaining.String())

	ord = q.popHeadOrder()
	assert.Equal(t, uint64(202), ord.ID)

	ord = q.popHeadOrder()
	assert.Equal(t, uint64(101), ord.ID)
	assert.Equal(t, "10", ord.Price.String())

	assert.Equal(t, int64(0), q.orderCount())
	assert.Nil(t, q.popHeadOrder())
}

func TestAskQueueOrdering(t *testing.T) {
	q := newAskQueue()

	q.insertOrder(&Order{ID: 1, Seq: 1, Price: decimal.NewFromInt(30), Remaining: decimal.NewFromInt(1)}, false)
	q.insertOrder(&Order{ID: 2, Seq: 2, Price: decimal.NewFromInt(10), Remaining: decimal.NewFromInt(1)}, false)
	q.insertOrder(&Order{ID: 3, Seq: 3, Price: decimal.NewFromInt(20), Remaining: decimal.NewFromInt(1)}, false)

	assert.Equal(t, "10", q.popHeadOrder().Price.String())
	assert.Equal(t, "20", q.popHeadOrder().Price.String())
	assert.Equal(t, "30", q.popHeadOrder().Price.String())
}

func TestQueueFIFOWithinLevel(t *testing.T) {
	q := newAskQueue()
	price := decimal.NewFromInt(50)

	for i := uint64(1); i <= 5; i++ {
		q.insertOrder(&Order{ID: i, Seq: i, Price: price, Remaining: decimal.NewFromInt(1)}, false)
	}

	for i := uint64(1); i <= 5; i++ {
		assert.Equal(t, i, q.popHeadOrder().ID)
	}
}

func TestQueueRemoveOrder(t *testing.T) {
	q := newBidQueue()
	price := decimal.NewFromInt(10)

	q.insertOrder(&Order{ID: 1, Seq: 1, Price: price, Remaining: decimal.NewFromInt(3)}, false)
	q.insertOrder(&Order{ID: 2, Seq: 2, Price: price, Remaining: decimal.NewFromInt(4)}, false)
	q.insertOrder(&Order{ID: 3, Seq: 3, Price: price, Remaining: decimal.NewFromInt(5)}, false)

	// Remove from the middle of a level.
	assert.True(t, q.removeOrder(2))
	assert.False(t, q.removeOrder(2))
	assert.Equal(t, int64(2), q.orderCount())

	assert.Equal(t, uint64(1), q.popHeadOrder().ID)
	assert.Equal(t, uint64(3), q.popHeadOrder().ID)

	// Removing the last order prunes its level.
	assert.Equal(t, int64(0), q.depthCount())
}

func TestQueueReduceOrderQty(t *testing.T) {
	q := newAskQueue()
	price := decimal.NewFromInt(10)

	q.insertOrder(&Order{ID: 1, Seq: 1, Price: price, Original: decimal.NewFromInt(10), Remaining: decimal.NewFromInt(10)}, false)
	q.reduceOrderQty(1, decimal.NewFromInt(4))

	ord := q.order(1)
	require.NotNil(t, ord)
	assert.Equal(t, "6", ord.Remaining.String())
	assert.NoError(t, q.checkInvariants())
}

func TestQueueMarketableQty(t *testing.T) {
	q := newAskQueue()
	q.insertOrder(&Order{ID: 1, Seq: 1, Price: decimal.NewFromInt(10), Remaining: decimal.NewFromInt(5)}, false)
	q.insertOrder(&Order{ID: 2, Seq: 2, Price: decimal.NewFromInt(20), Remaining: decimal.NewFromInt(5)}, false)
	q.insertOrder(&Order{ID: 3, Seq: 3, Price: decimal.NewFromInt(30), Remaining: decimal.NewFromInt(5)}, false)

	// Buy limited to 20 can reach the 10 and 20 levels only.
	got := q.marketableQty(decimal.NewFromInt(20), Buy, decimal.NewFromInt(100))
	assert.Equal(t, "10", got.String())

	// Zero limit means no price constraint (market order).
	got = q.marketableQty(decimal.Zero, Buy, decimal.NewFromInt(100))
	assert.Equal(t, "15", got.String())

	// The scan stops as soon as the wanted quantity is covered.
	got = q.marketableQty(decimal.NewFromInt(30), Buy, decimal.NewFromInt(7))
	assert.True(t, got.GreaterThanOrEqual(decimal.NewFromInt(7)))
}

func TestQueueDepthAggregation(t *testing.T) {
	q := newBidQueue()

	q.insertOrder(&Order{ID: 1, Seq: 1, Price: decimal.NewFromInt(10), Remaining: decimal.NewFromInt(5)}, false)
	q.insertOrder(&Order{ID: 2, Seq: 2, Price: decimal.NewFromInt(10), Remaining: decimal.NewFromInt(5)}, false)
	q.insertOrder(&Order{ID: 3, Seq: 3, Price: decimal.NewFromInt(20), Remaining: decimal.NewFromInt(1)}, false)

	items := q.depth(10)
	require.Len(t, items, 2)
	assert.Equal(t, "20", items[0].Price.String())
	assert.Equal(t, "1", items[0].Qty.String())
	assert.Equal(t, "10", items[1].Price.String())
	assert.Equal(t, "10", items[1].Qty.String())

	items = q.depth(1)
	require.Len(t, items, 1)
	assert.Equal(t, "20", items[0].Price.String())
}

func TestQueueInvariants(t *testing.T) {
	q := newAskQueue()
	q.insertOrder(&Order{ID: 1, Seq: 1, Price: decimal.NewFromInt(10), Remaining: decimal.NewFromInt(5)}, false)
	assert.NoError(t, q.checkInvariants())

	// Corrupt the remaining quantity and expect a fault.
	q.order(1).Remaining = decimal.Zero
	err := q.checkInvariants()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestQueueSnapshotRoundTrip(t *testing.T) {
	q := newBidQueue()
	q.insertOrder(&Order{ID: 1, Seq: 1, Price: decimal.NewFromInt(20), Original: decimal.NewFromInt(5), Remaining: decimal.NewFromInt(5)}, false)
	q.insertOrder(&Order{ID: 2, Seq: 2, Price: decimal.NewFromInt(10), Original: decimal.NewFromInt(3), Remaining: decimal.NewFromInt(3)}, false)
	q.insertOrder(&Order{ID: 3, Seq: 3, Price: decimal.NewFromInt(20), Original: decimal.NewFromInt(7), Remaining: decimal.NewFromInt(7)}, false)

	snap := q.toSnapshot()
	require.Len(t, snap, 3)

	// Best price first, FIFO within a level.
	assert.Equal(t, uint64(1), snap[0].ID)
	assert.Equal(t, uint64(3), snap[1].ID)
	assert.Equal(t, uint64(2), snap[2].ID)

	restored := newBidQueue()
	for i := range snap {
		o := snap[i]
		restored.insertOrder(&o, false)
	}
	assert.Equal(t, q.orderCount(), restored.orderCount())
	assert.Equal(t, q.depthCount(), restored.depthCount())
	assert.NoError(t, restored.checkInvariants())
}
