package venue

import (
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// priceLevel is the FIFO of resting orders sharing one price, kept as an
// intrusive doubly linked list ordered by insertion sequence (oldest first).
type priceLevel struct {
	totalQty decimal.Decimal
	head     *Order
	tail     *Order
	count    int64
}

// DepthItem is one aggregated price level of a depth snapshot.
type DepthItem struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
	Count int64
}

// Depth is a point-in-time aggregated view of both sides of a book.
type Depth struct {
	UpdateID uint64
	Bids     []*DepthItem
	Asks     []*DepthItem
}

// queue is one side of an order book: price levels in priority order plus a
// FIFO within each level. Price ordering lives in the skip list; insertion
// ordering lives in the per-level linked list. The two are maintained
// independently on purpose.
type queue struct {
	side        Side
	totalOrders int64
	depths      int64
	levelList   *skiplist.SkipList
	priceIndex  map[string]*skiplist.Element
	orders      map[uint64]*Order
}

// newBidQueue creates the buy side: levels sorted by price descending
// (highest bid first).
func newBidQueue() *queue {
	return &queue{
		side: Buy,
		levelList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d2.Cmp(d1)
		})),
		priceIndex: make(map[string]*skiplist.Element),
		orders:     make(map[uint64]*Order),
	}
}

// newAskQueue creates the sell side: levels sorted by price ascending
// (lowest ask first).
func newAskQueue() *queue {
	return &queue{
		side: Sell,
		levelList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d1.Cmp(d2)
		})),
		priceIndex: make(map[string]*skiplist.Element),
		orders:     make(map[uint64]*Order),
	}
}

// order finds a resting order by its ID.
func (q *queue) order(id uint64) *Order {
	return q.orders[id]
}

// insertOrder adds an order to its price level, creating the level if needed.
// isFront re-inserts a partially filled head ahead of its siblings so its
// time priority survives the pop/match/push cycle.
func (q *queue) insertOrder(order *Order, isFront bool) {
	key := order.Price.String()
	el, ok := q.priceIndex[key]
	if ok {
		level, _ := el.Value.(*priceLevel)
		if isFront {
			order.next = level.head
			order.prev = nil
			if level.head != nil {
				level.head.prev = order
			}
			level.head = order
			if level.tail == nil {
				level.tail = order
			}
		} else {
			order.prev = level.tail
			order.next = nil
			if level.tail != nil {
				level.tail.next = order
			}
			level.tail = order
			if level.head == nil {
				level.head = order
			}
		}

		level.totalQty = level.totalQty.Add(order.Remaining)
		level.count++
		q.orders[order.ID] = order
		q.totalOrders++
	} else {
		level := &priceLevel{
			head:     order,
			tail:     order,
			totalQty: order.Remaining,
			count:    1,
		}
		order.next = nil
		order.prev = nil

		q.orders[order.ID] = order

		el := q.levelList.Set(order.Price, level)
		q.priceIndex[key] = el

		q.totalOrders++
		q.depths++
	}
}

// removeOrder removes an order from its level and prunes the level when it
// becomes empty. Returns false if the order is not resting on this side.
func (q *queue) removeOrder(id uint64) bool {
	order, ok := q.orders[id]
	if !ok {
		return false
	}

	key := order.Price.String()
	el, ok := q.priceIndex[key]
	if !ok {
		return false
	}
	level, _ := el.Value.(*priceLevel)

	if order.prev != nil {
		order.prev.next = order.next
	} else {
		level.head = order.next
	}

	if order.next != nil {
		order.next.prev = order.prev
	} else {
		level.tail = order.prev
	}

	// Clear pointers so a removed order never aliases the list
	order.next = nil
	order.prev = nil

	level.totalQty = level.totalQty.Sub(order.Remaining)
	level.count--
	delete(q.orders, id)
	q.totalOrders--

	if level.count == 0 {
		q.levelList.RemoveElement(el)
		delete(q.priceIndex, key)
		q.depths--
	}

	return true
}

// reduceOrderQty shrinks an order's remaining quantity in place, preserving
// its queue position. Used for fills against a peeked head and for
// quantity-only modifications.
func (q *queue) reduceOrderQty(id uint64, delta decimal.Decimal) {
	order, ok := q.orders[id]
	if !ok {
		return
	}

	el, ok := q.priceIndex[order.Price.String()]
	if ok {
		level, _ := el.Value.(*priceLevel)
		level.totalQty = level.totalQty.Sub(delta)
		order.Remaining = order.Remaining.Sub(delta)
	}
}

// peekHeadOrder returns the order at the front of the best level without
// removing it.
func (q *queue) peekHeadOrder() *Order {
	el := q.levelList.Front()
	if el == nil {
		return nil
	}

	level, _ := el.Value.(*priceLevel)
	return level.head
}

// popHeadOrder removes and returns the order at the front of the best level.
func (q *queue) popHeadOrder() *Order {
	ord := q.peekHeadOrder()

	if ord != nil {
		q.removeOrder(ord.ID)
	}

	return ord
}

// bestPrice returns the top-of-book price for this side, or an invalid
// NullDecimal when the side is empty.
func (q *queue) bestPrice() decimal.NullDecimal {
	el := q.levelList.Front()
	if el == nil {
		return decimal.NullDecimal{}
	}

	level, _ := el.Value.(*priceLevel)
	return decimal.NullDecimal{Decimal: level.head.Price, Valid: true}
}

// marketableQty walks the levels from the front and sums the quantity a
// taker at the given limit could execute, stopping early once the running
// total covers want. A zero limit means no price constraint (market order).
// Used by the fill-or-kill pre-check; the book is not mutated.
func (q *queue) marketableQty(limit decimal.Decimal, taker Side, want decimal.Decimal) decimal.Decimal {
	total := decimal.Zero

	for el := q.levelList.Front(); el != nil; el = el.Next() {
		level, _ := el.Value.(*priceLevel)
		price := level.head.Price

		if !limit.IsZero() {
			if taker == Buy && limit.LessThan(price) ||
				taker == Sell && limit.GreaterThan(price) {
				break
			}
		}

		total = total.Add(level.totalQty)
		if total.GreaterThanOrEqual(want) {
			break
		}
	}

	return total
}

// orderCount returns the total number of orders on this side.
func (q *queue) orderCount() int64 {
	return q.totalOrders
}

// depthCount returns the number of price levels on this side.
func (q *queue) depthCount() int64 {
	return q.depths
}

// toSnapshot serializes this side into a slice of Orders, walking levels in
// priority order and each level oldest-first, so re-inserting the slice in
// order reproduces both invariants.
func (q *queue) toSnapshot() []Order {
	snapshots := make([]Order, 0, q.totalOrders)

	elem := q.levelList.Front()
	for elem != nil {
		level := elem.Value.(*priceLevel)

		order := level.head
		for order != nil {
			snapshots = append(snapshots, Order{
				ID:        order.ID,
				Side:      order.Side,
				Type:      order.Type,
				TIF:       order.TIF,
				PostOnly:  order.PostOnly,
				Price:     order.Price,
				Original:  order.Original,
				Remaining: order.Remaining,
				Seq:       order.Seq,
			})
			order = order.next
		}

		elem = elem.Next()
	}

	return snapshots
}

// depth returns the aggregated levels of this side up to limit.
func (q *queue) depth(limit uint32) []*DepthItem {
	result := make([]*DepthItem, 0, limit)

	el := q.levelList.Front()

	var i uint32
	for i < limit && el != nil {
		level, _ := el.Value.(*priceLevel)
		d := DepthItem{
			Price: level.head.Price,
			Qty:   level.totalQty,
			Count: level.count,
		}

		result = append(result, &d)

		el = el.Next()
		i++
	}

	return result
}

// checkInvariants validates structural invariants of this side: no indexed
// empty levels, no non-positive remaining quantities, level totals matching
// their orders. Violations are fatal faults, never business errors.
func (q *queue) checkInvariants() error {
	for el := q.levelList.Front(); el != nil; el = el.Next() {
		level, _ := el.Value.(*priceLevel)
		if level.head == nil || level.count == 0 {
			return errInvariantf("side %v: empty price level still indexed", q.side)
		}

		sum := decimal.Zero
		for order := level.head; order != nil; order = order.next {
			if !order.Remaining.IsPositive() {
				return errInvariantf("side %v: order %d has non-positive remaining %s", q.side, order.ID, order.Remaining)
			}
			if !order.Price.Equal(level.head.Price) {
				return errInvariantf("side %v: order %d price %s differs from level price %s", q.side, order.ID, order.Price, level.head.Price)
			}
			sum = sum.Add(order.Remaining)
		}
		if !sum.Equal(level.totalQty) {
			return errInvariantf("side %v: level %s total %s != sum of orders %s", q.side, level.head.Price, level.totalQty, sum)
		}
	}
	return nil
}
