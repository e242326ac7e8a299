package venue

import (
	"github.com/cutamar/govenue/protocol"
	"github.com/shopspring/decimal"
)

type Side = protocol.Side

const (
	Buy  Side = protocol.SideBuy
	Sell Side = protocol.SideSell
)

type OrderType = protocol.OrderType

const (
	Limit  OrderType = protocol.OrderTypeLimit
	Market OrderType = protocol.OrderTypeMarket
)

type TimeInForce = protocol.TimeInForce

const (
	GTC TimeInForce = protocol.TimeInForceGTC
	IOC TimeInForce = protocol.TimeInForceIOC
	FOK TimeInForce = protocol.TimeInForceFOK
)

// Order is the state of a live order owned by the book.
// This is also the serializable state used for snapshots.
//
// The engine assigns ID on acceptance; IDs are never reused. Seq is the
// insertion sequence that decides time priority among equal prices: a
// quantity-only decrease keeps Seq, everything else re-queues under a new one.
type Order struct {
	ID        uint64          `json:"id"`
	Side      Side            `json:"side"`
	Type      OrderType       `json:"type"`
	TIF       TimeInForce     `json:"tif"`
	PostOnly  bool            `json:"post_only,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Original  decimal.Decimal `json:"original"`
	Remaining decimal.Decimal `json:"remaining"`
	Seq       uint64          `json:"seq"`

	// Intrusive linked list pointers (ignored by JSON)
	next *Order
	prev *Order
}

// Filled returns the cumulative executed quantity.
func (o *Order) Filled() decimal.Decimal {
	return o.Original.Sub(o.Remaining)
}
