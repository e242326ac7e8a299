package protocol

// Side represents the order side (Buy/Sell).
type Side int8

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	}
	return "unknown"
}

// OrderType represents the type of order.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// TimeInForce controls how long an order stays live.
// GTC is the default; IOC and FOK never rest on the book.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "gtc"
	TimeInForceIOC TimeInForce = "ioc"
	TimeInForceFOK TimeInForce = "fok"
)

// EventType represents the type of event emitted by the engine.
type EventType string

const (
	EventTypeAccepted  EventType = "accepted"
	EventTypeRejected  EventType = "rejected"
	EventTypeTrade     EventType = "trade"
	EventTypeRested    EventType = "rested"
	EventTypeCanceled  EventType = "canceled"
	EventTypeReplaced  EventType = "replaced"
	EventTypeTopOfBook EventType = "top_of_book"
)

// RejectReason is the closed set of business rejection reasons.
// Adding a reason here is a compile-time-visible change; reasons are
// never free-form strings.
type RejectReason string

const (
	RejectReasonNone                  RejectReason = ""
	RejectReasonInvalidQty            RejectReason = "invalid_qty"
	RejectReasonInvalidPrice          RejectReason = "invalid_price"
	RejectReasonUnknownInstrument     RejectReason = "unknown_instrument"
	RejectReasonNotFound              RejectReason = "not_found"
	RejectReasonUnfilled              RejectReason = "unfilled"               // market/IOC remainder that cannot rest
	RejectReasonInsufficientLiquidity RejectReason = "insufficient_liquidity" // FOK: cannot be fully filled
	RejectReasonWouldCross            RejectReason = "would_cross"            // post-only order would match immediately
	RejectReasonInvalidPayload        RejectReason = "invalid_payload"
)

// DepthItem is one aggregated price level in a depth response.
// Prices and sizes travel as strings to prevent precision loss in JSON.
type DepthItem struct {
	Price string `json:"price"`
	Size  string `json:"size"`
	Count int64  `json:"count"`
}

// GetDepthResponse represents the state of the order book depth.
type GetDepthResponse struct {
	UpdateID uint64       `json:"update_id"`
	Asks     []*DepthItem `json:"asks"`
	Bids     []*DepthItem `json:"bids"`
}

// GetStatsResponse contains statistics about one book's queues.
type GetStatsResponse struct {
	AskDepthCount int64 `json:"ask_depth_count"`
	AskOrderCount int64 `json:"ask_order_count"`
	BidDepthCount int64 `json:"bid_depth_count"`
	BidOrderCount int64 `json:"bid_order_count"`
}
