package venue

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// maxNumeric bounds prices and quantities so downstream fixed-width
// consumers never observe silently truncated values.
var maxNumeric = decimal.New(1, 18)

// BookStats contains statistics about one engine's book queues.
type BookStats struct {
	AskDepthCount int64
	AskOrderCount int64
	BidDepthCount int64
	BidOrderCount int64
}

// Engine is the deterministic matching core for a single instrument: it
// turns an ordered sequence of commands into an ordered sequence of events,
// mutating its book in place. It is synchronous and single-threaded; the
// surrounding venue serializes access. Replaying the same
// command sequence against a fresh engine reproduces the exact same event
// sequence, byte for byte.
type Engine struct {
	instrument string
	book       *book
	seq        Sequencer
}

// NewEngine creates an empty engine for one instrument.
func NewEngine(instrument string) *Engine {
	return &Engine{
		instrument: instrument,
		book:       newBook(),
	}
}

// Instrument returns the instrument this engine matches.
func (e *Engine) Instrument() string {
	return e.instrument
}

// Process applies one command and returns the events it produced, in the
// exact order they logically occurred. Business failures (bad quantity,
// unknown order ID, unfillable FOK, ...) are returned as Rejected events
// with a nil error. A non-nil error is a fatal fault wrapping ErrInvariant:
// the book state can no longer be trusted and the caller must stop.
func (e *Engine) Process(cmd Command) ([]*Event, error) {
	if cmd == nil {
		return nil, ErrInvalidParam
	}

	bidBefore := e.book.bestBid()
	askBefore := e.book.bestAsk()

	var events []*Event
	var clientTS int64

	switch c := cmd.(type) {
	case *Submit:
		clientTS = c.ClientTS
		events = e.processSubmit(c)
	case *Cancel:
		clientTS = c.ClientTS
		events = e.processCancel(c)
	case *Modify:
		clientTS = c.ClientTS
		events = e.processModify(c)
	default:
		return nil, fmt.Errorf("%w: unsupported command type %T", ErrInvalidParam, cmd)
	}

	if err := e.book.checkInvariants(); err != nil {
		return nil, err
	}

	bidAfter := e.book.bestBid()
	askAfter := e.book.bestAsk()
	if !nullDecimalEqual(bidBefore, bidAfter) || !nullDecimalEqual(askBefore, askAfter) {
		events = append(events, newTopOfBookEvent(e.seq.nextEvent(), e.instrument, bidAfter, askAfter, clientTS))
	}

	return events, nil
}

// processSubmit validates the command, and on success assigns an order ID,
// emits Accepted and runs the matching algorithm. Fill-or-kill orders that
// cannot fill in full and post-only orders that would cross are rejected
// up front without acceptance and without consuming an order ID.
func (e *Engine) processSubmit(cmd *Submit) []*Event {
	if reason, ok := e.validateSubmit(cmd); !ok {
		return []*Event{newRejectedEvent(e.seq.nextEvent(), e.instrument, 0, reason, cmd.ClientTS)}
	}

	order := &Order{
		Side:      cmd.Side,
		Type:      cmd.Type,
		TIF:       cmd.tif(),
		PostOnly:  cmd.PostOnly,
		Price:     cmd.Price,
		Original:  cmd.Qty,
		Remaining: cmd.Qty,
	}
	if order.Type == Market {
		order.Price = decimal.Zero
	}

	if order.PostOnly && e.wouldCross(order) {
		return []*Event{newRejectedEvent(e.seq.nextEvent(), e.instrument, 0, RejectWouldCross, cmd.ClientTS)}
	}
	if order.TIF == FOK && !e.fokFillable(order) {
		return []*Event{newRejectedEvent(e.seq.nextEvent(), e.instrument, 0, RejectInsufficientLiquidity, cmd.ClientTS)}
	}

	order.ID = e.seq.nextOrderID()
	events := []*Event{newAcceptedEvent(e.seq.nextEvent(), e.instrument, order, cmd.ClientTS)}

	switch {
	case order.Type == Market:
		events = e.matchImmediate(order, cmd.ClientTS, events)
	case order.TIF == IOC:
		events = e.matchImmediate(order, cmd.ClientTS, events)
	case order.TIF == FOK:
		// The pre-check guarantees a full fill; cross only.
		events = e.cross(order, cmd.ClientTS, events)
	default:
		events = e.matchLimit(order, cmd.ClientTS, events)
	}

	return events
}

// validateSubmit runs the pure validation step of the command lifecycle.
// Nothing is mutated on failure.
func (e *Engine) validateSubmit(cmd *Submit) (RejectReason, bool) {
	if cmd.Instrument != e.instrument {
		return RejectUnknownInstrument, false
	}
	if !cmd.Qty.IsPositive() || cmd.Qty.GreaterThanOrEqual(maxNumeric) {
		return RejectInvalidQty, false
	}

	switch cmd.Type {
	case Limit:
		if !cmd.Price.IsPositive() || cmd.Price.GreaterThanOrEqual(maxNumeric) {
			return RejectInvalidPrice, false
		}
	case Market:
		if !cmd.Price.IsZero() {
			return RejectInvalidPrice, false
		}
		if cmd.PostOnly {
			return RejectInvalidPayload, false
		}
		// A market order can never rest, so GTC makes no sense for it.
		if cmd.TIF != "" && cmd.TIF != IOC && cmd.TIF != FOK {
			return RejectInvalidPayload, false
		}
	default:
		return RejectInvalidPayload, false
	}

	return RejectNone, true
}

// processCancel removes a live order. Unknown, fully filled and already
// canceled IDs all resolve to the same NotFound rejection with zero book
// mutation, which makes cancel safely idempotent.
func (e *Engine) processCancel(cmd *Cancel) []*Event {
	if cmd.Instrument != e.instrument {
		return []*Event{newRejectedEvent(e.seq.nextEvent(), e.instrument, cmd.OrderID, RejectUnknownInstrument, cmd.ClientTS)}
	}

	order, err := e.book.remove(cmd.OrderID)
	if err != nil {
		return []*Event{newRejectedEvent(e.seq.nextEvent(), e.instrument, cmd.OrderID, RejectNotFound, cmd.ClientTS)}
	}

	return []*Event{newCanceledEvent(e.seq.nextEvent(), e.instrument, order, cmd.ClientTS)}
}

// processModify changes a live order's terms. A quantity-only decrease at
// the same price updates in place and keeps queue position. Any price
// change or quantity increase loses time priority: the order is pulled from
// the book, re-matched (which may trade immediately) and any remainder
// re-queued under a new insertion sequence. Either way the order keeps its
// ID, and the single Replaced event carries the order's final resting
// price and quantity, after any trades the modify triggered. Downstream
// views apply it as remove-old-level, add-new-level.
func (e *Engine) processModify(cmd *Modify) []*Event {
	if cmd.Instrument != e.instrument {
		return []*Event{newRejectedEvent(e.seq.nextEvent(), e.instrument, cmd.OrderID, RejectUnknownInstrument, cmd.ClientTS)}
	}

	order := e.book.order(cmd.OrderID)
	if order == nil {
		return []*Event{newRejectedEvent(e.seq.nextEvent(), e.instrument, cmd.OrderID, RejectNotFound, cmd.ClientTS)}
	}

	newPrice := order.Price
	if cmd.NewPrice.Valid {
		newPrice = cmd.NewPrice.Decimal
	}
	newQty := order.Remaining
	if cmd.NewQty.Valid {
		newQty = cmd.NewQty.Decimal
	}

	if !newPrice.IsPositive() || newPrice.GreaterThanOrEqual(maxNumeric) {
		return []*Event{newRejectedEvent(e.seq.nextEvent(), e.instrument, cmd.OrderID, RejectInvalidPrice, cmd.ClientTS)}
	}
	if !newQty.IsPositive() || newQty.GreaterThanOrEqual(maxNumeric) {
		return []*Event{newRejectedEvent(e.seq.nextEvent(), e.instrument, cmd.OrderID, RejectInvalidQty, cmd.ClientTS)}
	}

	oldPrice := order.Price
	oldQty := order.Remaining
	myQueue := e.book.sideQueue(order.Side)

	// Quantity-decrease at the same price keeps time priority.
	if newPrice.Equal(oldPrice) && newQty.LessThanOrEqual(oldQty) {
		filled := order.Filled()
		if newQty.LessThan(oldQty) {
			myQueue.reduceOrderQty(order.ID, oldQty.Sub(newQty))
		}
		order.Original = filled.Add(order.Remaining)
		return []*Event{newReplacedEvent(e.seq.nextEvent(), e.instrument, order, oldPrice, oldQty, cmd.ClientTS)}
	}

	// Priority lost: pull the order and resubmit it under its old ID.
	// Trades it triggers are emitted first; the Replaced event comes last
	// with the final resting quantity, zero if the re-match consumed it.
	myQueue.removeOrder(order.ID)
	filled := order.Filled()
	order.Price = newPrice
	order.Remaining = newQty
	order.Original = filled.Add(newQty)

	events := e.cross(order, cmd.ClientTS, nil)
	if order.Remaining.IsPositive() {
		order.Seq = e.seq.nextQueueSeq()
		e.book.insert(order)
	}
	return append(events, newReplacedEvent(e.seq.nextEvent(), e.instrument, order, oldPrice, oldQty, cmd.ClientTS))
}

// Depth returns the current aggregated book up to limit levels per side.
func (e *Engine) Depth(limit uint32) (*Depth, error) {
	if limit == 0 {
		return nil, ErrInvalidParam
	}
	return e.book.depth(limit, e.seq.EventSeq), nil
}

// BestBid returns the top-of-book bid, invalid when the side is empty.
func (e *Engine) BestBid() decimal.NullDecimal {
	return e.book.bestBid()
}

// BestAsk returns the top-of-book ask, invalid when the side is empty.
func (e *Engine) BestAsk() decimal.NullDecimal {
	return e.book.bestAsk()
}

// Order returns the live order with the given ID, or nil if it is not
// resting on the book.
func (e *Engine) Order(id uint64) *Order {
	return e.book.order(id)
}

// Stats returns usage statistics for the book.
func (e *Engine) Stats() *BookStats {
	return &BookStats{
		AskDepthCount: e.book.asks.depthCount(),
		AskOrderCount: e.book.asks.orderCount(),
		BidDepthCount: e.book.bids.depthCount(),
		BidOrderCount: e.book.bids.orderCount(),
	}
}

// ReplayCommands rebuilds an engine by processing a recorded command
// sequence from scratch, returning the engine and the full event stream it
// produced. The replay contract: the returned events are identical to the
// ones the original run produced, on any machine, any number of times.
func ReplayCommands(instrument string, cmds []Command) (*Engine, []*Event, error) {
	engine := NewEngine(instrument)
	var events []*Event
	for _, cmd := range cmds {
		evs, err := engine.Process(cmd)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, evs...)
	}
	return engine, events, nil
}

func nullDecimalEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	if !a.Valid {
		return true
	}
	return a.Decimal.Equal(b.Decimal)
}
