package venue

import (
	"github.com/cutamar/govenue/protocol"
	"github.com/shopspring/decimal"
)

type EventType = protocol.EventType

const (
	EventAccepted  EventType = protocol.EventTypeAccepted
	EventRejected  EventType = protocol.EventTypeRejected
	EventTrade     EventType = protocol.EventTypeTrade
	EventRested    EventType = protocol.EventTypeRested
	EventCanceled  EventType = protocol.EventTypeCanceled
	EventReplaced  EventType = protocol.EventTypeReplaced
	EventTopOfBook EventType = protocol.EventTypeTopOfBook
)

type RejectReason = protocol.RejectReason

const (
	RejectNone                  RejectReason = protocol.RejectReasonNone
	RejectInvalidQty            RejectReason = protocol.RejectReasonInvalidQty
	RejectInvalidPrice          RejectReason = protocol.RejectReasonInvalidPrice
	RejectUnknownInstrument     RejectReason = protocol.RejectReasonUnknownInstrument
	RejectNotFound              RejectReason = protocol.RejectReasonNotFound
	RejectUnfilled              RejectReason = protocol.RejectReasonUnfilled
	RejectInsufficientLiquidity RejectReason = protocol.RejectReasonInsufficientLiquidity
	RejectWouldCross            RejectReason = protocol.RejectReasonWouldCross
	RejectInvalidPayload        RejectReason = protocol.RejectReasonInvalidPayload
)

// Event is one entry of the engine's output stream. Seq is a monotonically
// increasing ID across every event one engine emits, used for ordering,
// deduplication and rebuild synchronization in downstream systems.
// Use Type to determine which fields are meaningful:
//   - Accepted, Rested, Canceled, Replaced, Trade: affect book state
//   - Rejected, TopOfBook: do not affect book state
//
// Events carry no wall-clock time; ClientTS echoes the timestamp of the
// triggering command, so a replayed command sequence reproduces the event
// stream byte for byte.
type Event struct {
	Seq          uint64              `json:"seq"`
	TradeID      uint64              `json:"trade_id,omitempty"` // sequential, only set for Trade events
	Type         EventType           `json:"type"`
	Instrument   string              `json:"instrument"`
	OrderID      uint64              `json:"order_id,omitempty"` // the taker for Trade events
	Side         Side                `json:"side,omitempty"`
	OrderType    OrderType           `json:"order_type,omitempty"`
	Price        decimal.Decimal     `json:"price"` // the maker's price for Trade events
	Qty          decimal.Decimal     `json:"qty"`
	Remaining    decimal.Decimal     `json:"remaining"`
	Amount       decimal.Decimal     `json:"amount,omitempty"` // Price * Qty, only set for Trade events
	MakerOrderID uint64              `json:"maker_order_id,omitempty"`
	OldPrice     decimal.Decimal     `json:"old_price,omitempty"` // Replaced only
	OldQty       decimal.Decimal     `json:"old_qty,omitempty"`   // Replaced only
	BestBid      decimal.NullDecimal `json:"best_bid,omitempty"`  // TopOfBook only
	BestAsk      decimal.NullDecimal `json:"best_ask,omitempty"`  // TopOfBook only
	Reason       RejectReason        `json:"reason,omitempty"`    // Rejected only
	ClientTS     int64               `json:"client_ts,omitempty"`
}

func newAcceptedEvent(seq uint64, instrument string, order *Order, clientTS int64) *Event {
	return &Event{
		Seq:        seq,
		Type:       EventAccepted,
		Instrument: instrument,
		OrderID:    order.ID,
		Side:       order.Side,
		OrderType:  order.Type,
		Price:      order.Price,
		Qty:        order.Original,
		Remaining:  order.Remaining,
		ClientTS:   clientTS,
	}
}

func newTradeEvent(seq, tradeID uint64, instrument string, taker, maker *Order, qty decimal.Decimal, clientTS int64) *Event {
	return &Event{
		Seq:          seq,
		TradeID:      tradeID,
		Type:         EventTrade,
		Instrument:   instrument,
		OrderID:      taker.ID,
		Side:         taker.Side,
		OrderType:    taker.Type,
		Price:        maker.Price,
		Qty:          qty,
		Remaining:    taker.Remaining,
		Amount:       maker.Price.Mul(qty),
		MakerOrderID: maker.ID,
		ClientTS:     clientTS,
	}
}

func newRestedEvent(seq uint64, instrument string, order *Order, clientTS int64) *Event {
	return &Event{
		Seq:        seq,
		Type:       EventRested,
		Instrument: instrument,
		OrderID:    order.ID,
		Side:       order.Side,
		OrderType:  order.Type,
		Price:      order.Price,
		Qty:        order.Remaining,
		Remaining:  order.Remaining,
		ClientTS:   clientTS,
	}
}

func newCanceledEvent(seq uint64, instrument string, order *Order, clientTS int64) *Event {
	return &Event{
		Seq:        seq,
		Type:       EventCanceled,
		Instrument: instrument,
		OrderID:    order.ID,
		Side:       order.Side,
		OrderType:  order.Type,
		Price:      order.Price,
		Qty:        order.Remaining,
		Remaining:  order.Remaining,
		ClientTS:   clientTS,
	}
}

func newReplacedEvent(seq uint64, instrument string, order *Order, oldPrice, oldQty decimal.Decimal, clientTS int64) *Event {
	return &Event{
		Seq:        seq,
		Type:       EventReplaced,
		Instrument: instrument,
		OrderID:    order.ID,
		Side:       order.Side,
		OrderType:  order.Type,
		Price:      order.Price,
		Qty:        order.Remaining,
		Remaining:  order.Remaining,
		OldPrice:   oldPrice,
		OldQty:     oldQty,
		ClientTS:   clientTS,
	}
}

func newRejectedEvent(seq uint64, instrument string, orderID uint64, reason RejectReason, clientTS int64) *Event {
	return &Event{
		Seq:        seq,
		Type:       EventRejected,
		Instrument: instrument,
		OrderID:    orderID,
		Reason:     reason,
		ClientTS:   clientTS,
	}
}

// newUnfilledEvent reports the remainder of a market or IOC order that cannot
// rest on the book. The unfilled quantity is carried in Remaining.
func newUnfilledEvent(seq uint64, instrument string, order *Order, clientTS int64) *Event {
	return &Event{
		Seq:        seq,
		Type:       EventRejected,
		Instrument: instrument,
		OrderID:    order.ID,
		Side:       order.Side,
		OrderType:  order.Type,
		Price:      order.Price,
		Qty:        order.Original,
		Remaining:  order.Remaining,
		Reason:     RejectUnfilled,
		ClientTS:   clientTS,
	}
}

func newTopOfBookEvent(seq uint64, instrument string, bid, ask decimal.NullDecimal, clientTS int64) *Event {
	return &Event{
		Seq:        seq,
		Type:       EventTopOfBook,
		Instrument: instrument,
		BestBid:    bid,
		BestAsk:    ask,
		ClientTS:   clientTS,
	}
}
