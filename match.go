package venue

import (
	"github.com/shopspring/decimal"
)

// marketable reports whether the taker may execute against a maker resting
// at makerPrice. Market orders are always marketable.
func marketable(taker *Order, makerPrice decimal.Decimal) bool {
	if taker.Type == Market {
		return true
	}
	if taker.Side == Buy {
		return taker.Price.GreaterThanOrEqual(makerPrice)
	}
	return taker.Price.LessThanOrEqual(makerPrice)
}

// cross executes the taker against the opposite side while it stays
// marketable, appending one Trade event per fill. Fills happen at the
// maker's price, makers in strict price-time order, fill quantity
// min(taker.Remaining, maker.Remaining). A fully filled maker is removed
// from its level in the same step; a partially filled maker is pushed back
// to the front of its level so its time priority is untouched.
func (e *Engine) cross(taker *Order, clientTS int64, events []*Event) []*Event {
	target := e.book.sideQueue(taker.Side.Opposite())

	for taker.Remaining.IsPositive() {
		maker := target.peekHeadOrder()
		if maker == nil || !marketable(taker, maker.Price) {
			break
		}

		maker = target.popHeadOrder()

		fill := decimal.Min(taker.Remaining, maker.Remaining)
		taker.Remaining = taker.Remaining.Sub(fill)
		maker.Remaining = maker.Remaining.Sub(fill)

		events = append(events, newTradeEvent(
			e.seq.nextEvent(), e.seq.nextTrade(), e.instrument, taker, maker, fill, clientTS))

		if maker.Remaining.IsPositive() {
			target.insertOrder(maker, true)
		}
	}

	return events
}

// rest places the taker's remainder on its own side under a fresh insertion
// sequence and reports it.
func (e *Engine) rest(order *Order, clientTS int64, events []*Event) []*Event {
	order.Seq = e.seq.nextQueueSeq()
	e.book.insert(order)
	return append(events, newRestedEvent(e.seq.nextEvent(), e.instrument, order, clientTS))
}

// matchLimit handles a good-till-cancel limit order: cross while marketable,
// rest the remainder.
func (e *Engine) matchLimit(order *Order, clientTS int64, events []*Event) []*Event {
	events = e.cross(order, clientTS, events)
	if order.Remaining.IsPositive() {
		events = e.rest(order, clientTS, events)
	}
	return events
}

// matchImmediate handles market and IOC orders: cross while marketable and
// report any remainder as an Unfilled rejection. The remainder never rests.
func (e *Engine) matchImmediate(order *Order, clientTS int64, events []*Event) []*Event {
	events = e.cross(order, clientTS, events)
	if order.Remaining.IsPositive() {
		events = append(events, newUnfilledEvent(e.seq.nextEvent(), e.instrument, order, clientTS))
	}
	return events
}

// fokFillable is the fill-or-kill pre-check: without mutating the book,
// decide whether the order can execute in full at its limit (or at any price
// for a market order).
func (e *Engine) fokFillable(order *Order) bool {
	target := e.book.sideQueue(order.Side.Opposite())

	limit := decimal.Zero
	if order.Type == Limit {
		limit = order.Price
	}

	available := target.marketableQty(limit, order.Side, order.Remaining)
	return available.GreaterThanOrEqual(order.Remaining)
}

// wouldCross is the post-only check: true when the order would execute
// immediately against the current best opposing price.
func (e *Engine) wouldCross(order *Order) bool {
	maker := e.book.sideQueue(order.Side.Opposite()).peekHeadOrder()
	return maker != nil && marketable(order, maker.Price)
}
