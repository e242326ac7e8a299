package venue

import (
	"fmt"
	"sync"

	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"
)

// DepthView maintains a price-aggregated view of one instrument's book,
// tracking only price levels and their total quantities. It is designed
// for downstream services that rebuild book state from the event stream:
// feed it every event in sequence order and it mirrors the engine's depth
// without holding individual orders.
type DepthView struct {
	mu    sync.RWMutex
	seq   uint64 // Last applied event sequence, for gap detection and deduplication
	asks  *treemap.TreeMap[string, *viewLevel]
	bids  *treemap.TreeMap[string, *viewLevel]
	bbo   struct{ bid, ask decimal.NullDecimal }
	inst  string
	ready bool
}

type viewLevel struct {
	price decimal.Decimal
	qty   decimal.Decimal
}

// NewDepthView creates an empty view for one instrument. The first event
// applied establishes the sequence baseline.
func NewDepthView(instrument string) *DepthView {
	return &DepthView{
		inst: instrument,
		// Keys are canonical decimal strings, compared numerically.
		asks: treemap.NewWithKeyCompare[string, *viewLevel](decimalKeyLess),
		bids: treemap.NewWithKeyCompare[string, *viewLevel](decimalKeyLess),
	}
}

func decimalKeyLess(a, b string) bool {
	da, _ := decimal.NewFromString(a)
	db, _ := decimal.NewFromString(b)
	return da.LessThan(db)
}

// Instrument returns the instrument this view mirrors.
func (v *DepthView) Instrument() string {
	return v.inst
}

// SequenceID returns the last applied event sequence.
func (v *DepthView) SequenceID() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.seq
}

// Apply folds one event into the view. Events must arrive in sequence
// order per instrument: a duplicate or stale sequence is skipped silently,
// a gap returns ErrSequenceGap and leaves the view untouched so the caller
// can resynchronize from a snapshot.
func (v *DepthView) Apply(ev *Event) error {
	if ev == nil {
		return ErrInvalidParam
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.ready {
		if ev.Seq <= v.seq {
			return nil
		}
		if ev.Seq != v.seq+1 {
			return fmt.Errorf("%w: have %d, got %d", ErrSequenceGap, v.seq, ev.Seq)
		}
	}

	switch ev.Type {
	case EventRested:
		v.add(ev.Side, ev.Price, ev.Qty)
	case EventTrade:
		// Trades consume the resting maker, which sits on the opposite
		// side of the event's (taker) side.
		v.sub(ev.Side.Opposite(), ev.Price, ev.Qty)
	case EventCanceled:
		v.sub(ev.Side, ev.Price, ev.Remaining)
	case EventReplaced:
		v.sub(ev.Side, ev.OldPrice, ev.OldQty)
		if ev.Qty.IsPositive() {
			v.add(ev.Side, ev.Price, ev.Qty)
		}
	case EventTopOfBook:
		v.bbo.bid = ev.BestBid
		v.bbo.ask = ev.BestAsk
	case EventAccepted, EventRejected:
		// No book impact; only the sequence advances.
	}

	v.seq = ev.Seq
	v.ready = true
	return nil
}

func (v *DepthView) sideMap(side Side) *treemap.TreeMap[string, *viewLevel] {
	if side == Buy {
		return v.bids
	}
	return v.asks
}

func (v *DepthView) add(side Side, price, qty decimal.Decimal) {
	m := v.sideMap(side)
	key := price.String()
	if level, ok := m.Get(key); ok {
		level.qty = level.qty.Add(qty)
		return
	}
	m.Set(key, &viewLevel{price: price, qty: qty})
}

func (v *DepthView) sub(side Side, price, qty decimal.Decimal) {
	m := v.sideMap(side)
	key := price.String()
	level, ok := m.Get(key)
	if !ok {
		return
	}
	level.qty = level.qty.Sub(qty)
	if !level.qty.IsPositive() {
		m.Del(key)
	}
}

// Reset reinitializes the view from an engine snapshot. Call it before
// replaying events recorded after the snapshot's sequence position.
func (v *DepthView) Reset(snap *EngineSnapshot) error {
	if snap == nil {
		return ErrInvalidParam
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.bids.Clear()
	v.asks.Clear()
	for i := range snap.Bids {
		o := &snap.Bids[i]
		v.addLockedFromSnapshot(Buy, o.Price, o.Remaining)
	}
	for i := range snap.Asks {
		o := &snap.Asks[i]
		v.addLockedFromSnapshot(Sell, o.Price, o.Remaining)
	}

	v.seq = snap.Sequencer.EventSeq
	v.ready = true
	v.refreshBBOLocked()
	return nil
}

func (v *DepthView) addLockedFromSnapshot(side Side, price, qty decimal.Decimal) {
	m := v.sideMap(side)
	key := price.String()
	if level, ok := m.Get(key); ok {
		level.qty = level.qty.Add(qty)
		return
	}
	m.Set(key, &viewLevel{price: price, qty: qty})
}

func (v *DepthView) refreshBBOLocked() {
	v.bbo.bid = decimal.NullDecimal{}
	v.bbo.ask = decimal.NullDecimal{}
	// Both sides are stored ascending; the best bid is the largest key.
	if rit := v.bids.Reverse(); rit.Valid() {
		v.bbo.bid = decimal.NewNullDecimal(rit.Value().price)
	}
	if it := v.asks.Iterator(); it.Valid() {
		v.bbo.ask = decimal.NewNullDecimal(it.Value().price)
	}
}

// QtyAt returns the aggregated quantity resting at a price level, zero if
// the level does not exist.
func (v *DepthView) QtyAt(side Side, price decimal.Decimal) decimal.Decimal {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if level, ok := v.sideMap(side).Get(price.String()); ok {
		return level.qty
	}
	return decimal.Zero
}

// BestBid returns the highest bid price, invalid when the side is empty.
func (v *DepthView) BestBid() decimal.NullDecimal {
	v.mu.RLock()
	defer v.mu.RUnlock()

	rit := v.bids.Reverse()
	if !rit.Valid() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(rit.Value().price)
}

// BestAsk returns the lowest ask price, invalid when the side is empty.
func (v *DepthView) BestAsk() decimal.NullDecimal {
	v.mu.RLock()
	defer v.mu.RUnlock()

	it := v.asks.Iterator()
	if !it.Valid() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(it.Value().price)
}

// Depth returns up to limit levels per side, bids descending and asks
// ascending, in the same shape the engine's own depth query produces.
func (v *DepthView) Depth(limit uint32) *Depth {
	v.mu.RLock()
	defer v.mu.RUnlock()

	d := &Depth{
		UpdateID: v.seq,
		Bids:     make([]*DepthItem, 0, limit),
		Asks:     make([]*DepthItem, 0, limit),
	}

	count := uint32(0)
	for rit := v.bids.Reverse(); rit.Valid() && count < limit; rit.Next() {
		level := rit.Value()
		d.Bids = append(d.Bids, &DepthItem{Price: level.price, Qty: level.qty})
		count++
	}

	count = 0
	for it := v.asks.Iterator(); it.Valid() && count < limit; it.Next() {
		level := it.Value()
		d.Asks = append(d.Asks, &DepthItem{Price: level.price, Qty: level.qty})
		count++
	}

	return d
}

// ViewPublisher routes the event stream into one DepthView per instrument,
// implementing EventPublisher so views can ride the same fanout as the
// durable sinks. Apply failures are logged, not propagated: a view that
// falls behind resynchronizes from a snapshot, it never blocks matching.
type ViewPublisher struct {
	views map[string]*DepthView
}

// NewViewPublisher indexes the given views by instrument.
func NewViewPublisher(views ...*DepthView) *ViewPublisher {
	p := &ViewPublisher{views: make(map[string]*DepthView, len(views))}
	for _, v := range views {
		p.views[v.Instrument()] = v
	}
	return p
}

// View returns the view for an instrument, or nil.
func (p *ViewPublisher) View(instrument string) *DepthView {
	return p.views[instrument]
}

// Publish implements EventPublisher.
func (p *ViewPublisher) Publish(events ...*Event) {
	for _, ev := range events {
		v, ok := p.views[ev.Instrument]
		if !ok {
			continue
		}
		if err := v.Apply(ev); err != nil {
			logger.Error("depth view apply failed",
				"instrument", ev.Instrument, "seq", ev.Seq, "error", err)
		}
	}
}
