package venue

import (
	"github.com/shopspring/decimal"
)

// Command is the closed set of inputs an engine processes. Commands are pure
// values with no hidden fields: the full command history replayed against an
// empty engine reconstructs the book exactly.
type Command interface {
	isCommand()
}

// Submit places a new order.
type Submit struct {
	Instrument string          `json:"instrument"`
	Side       Side            `json:"side"`
	Type       OrderType       `json:"type"`
	TIF        TimeInForce     `json:"tif,omitempty"` // empty means GTC
	PostOnly   bool            `json:"post_only,omitempty"`
	Price      decimal.Decimal `json:"price"` // ignored for market orders
	Qty        decimal.Decimal `json:"qty"`
	ClientTS   int64           `json:"client_ts,omitempty"`
}

// Cancel removes a live order by its engine-assigned ID.
type Cancel struct {
	Instrument string `json:"instrument"`
	OrderID    uint64 `json:"order_id"`
	ClientTS   int64  `json:"client_ts,omitempty"`
}

// Modify changes the price and/or quantity of a live order.
// An unset field keeps the current value. A quantity decrease at the same
// price keeps queue position; any price change or quantity increase is a
// cancel-and-resubmit that loses time priority and may match immediately.
type Modify struct {
	Instrument string              `json:"instrument"`
	OrderID    uint64              `json:"order_id"`
	NewPrice   decimal.NullDecimal `json:"new_price,omitempty"`
	NewQty     decimal.NullDecimal `json:"new_qty,omitempty"`
	ClientTS   int64               `json:"client_ts,omitempty"`
}

func (*Submit) isCommand() {}
func (*Cancel) isCommand() {}
func (*Modify) isCommand() {}

// tif normalizes the zero value to GTC.
func (c *Submit) tif() TimeInForce {
	if c.TIF == "" {
		return GTC
	}
	return c.TIF
}
