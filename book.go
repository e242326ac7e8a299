package venue

import (
	"github.com/shopspring/decimal"
)

// book is the two-sided order book for one instrument: bid levels highest
// first, ask levels lowest first, FIFO within each level. The book owns
// every Order it references; orders are never shared across books. All
// mutation happens through the owning engine, one command at a time.
type book struct {
	bids *queue
	asks *queue
}

func newBook() *book {
	return &book{
		bids: newBidQueue(),
		asks: newAskQueue(),
	}
}

// sideQueue returns the queue holding orders of the given side.
func (b *book) sideQueue(side Side) *queue {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

// insert adds a non-marketable remainder to its side. The caller guarantees
// the order does not cross; matching happens before insertion.
func (b *book) insert(order *Order) {
	b.sideQueue(order.Side).insertOrder(order, false)
}

// order finds a live order on either side.
func (b *book) order(id uint64) *Order {
	if o := b.bids.order(id); o != nil {
		return o
	}
	return b.asks.order(id)
}

// remove deletes a live order and prunes its level if emptied.
// Returns ErrNotFound for unknown, filled or already-canceled IDs; that is a
// recoverable business condition, not a fault.
func (b *book) remove(id uint64) (*Order, error) {
	if o := b.bids.order(id); o != nil {
		b.bids.removeOrder(id)
		return o, nil
	}
	if o := b.asks.order(id); o != nil {
		b.asks.removeOrder(id)
		return o, nil
	}
	return nil, ErrNotFound
}

func (b *book) bestBid() decimal.NullDecimal {
	return b.bids.bestPrice()
}

func (b *book) bestAsk() decimal.NullDecimal {
	return b.asks.bestPrice()
}

// depth returns the aggregated book up to limit levels per side.
func (b *book) depth(limit uint32, updateID uint64) *Depth {
	return &Depth{
		UpdateID: updateID,
		Bids:     b.bids.depth(limit),
		Asks:     b.asks.depth(limit),
	}
}

// checkInvariants validates both sides and the no-cross invariant: at rest
// the best bid must be strictly below the best ask unless a side is empty.
func (b *book) checkInvariants() error {
	if err := b.bids.checkInvariants(); err != nil {
		return err
	}
	if err := b.asks.checkInvariants(); err != nil {
		return err
	}

	bid := b.bestBid()
	ask := b.bestAsk()
	if bid.Valid && ask.Valid && bid.Decimal.GreaterThanOrEqual(ask.Decimal) {
		return errInvariantf("book crossed: best bid %s >= best ask %s", bid.Decimal, ask.Decimal)
	}
	return nil
}
