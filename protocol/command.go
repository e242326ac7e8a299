package protocol

// CommandType identifies the payload carried by a Command envelope.
type CommandType uint8

const (
	CmdUnknown CommandType = 0

	CmdSubmit CommandType = 51
	CmdCancel CommandType = 52
	CmdModify CommandType = 53
)

// Command is the standard carrier for commands entering the venue.
// It is designed to be efficient for serialization and compatible with
// event sourcing: the durable command log stores these envelopes verbatim.
type Command struct {
	// Version is the protocol version for backward compatibility.
	Version uint8 `json:"version"`

	// Instrument is the target instrument for this command (routing header).
	Instrument string `json:"instrument"`

	// SeqID is used for global ordering and deduplication.
	SeqID uint64 `json:"seq_id"`

	// Type identifies the payload type for fast routing.
	Type CommandType `json:"type"`

	// Payload contains the serialized business data (e.g., JSON bytes of
	// SubmitPayload). Deserialization is deferred until the owning engine
	// processes the command.
	Payload []byte `json:"payload"`

	// Metadata stores non-business context (e.g., request ID, source IP).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SubmitPayload is the payload for placing a new order.
// Prices and quantities travel as strings to prevent precision loss.
type SubmitPayload struct {
	Side        Side        `json:"side"`
	OrderType   OrderType   `json:"order_type"`
	TimeInForce TimeInForce `json:"time_in_force,omitempty"`
	PostOnly    bool        `json:"post_only,omitempty"`
	Price       string      `json:"price,omitempty"` // empty for market orders
	Qty         string      `json:"qty"`
	ClientTS    int64       `json:"client_ts,omitempty"`
}

// CancelPayload is the payload for cancelling an existing order.
type CancelPayload struct {
	OrderID  uint64 `json:"order_id"`
	ClientTS int64  `json:"client_ts,omitempty"`
}

// ModifyPayload is the payload for modifying an existing order.
// Empty NewPrice or NewQty means "keep the current value".
type ModifyPayload struct {
	OrderID  uint64 `json:"order_id"`
	NewPrice string `json:"new_price,omitempty"`
	NewQty   string `json:"new_qty,omitempty"`
	ClientTS int64  `json:"client_ts,omitempty"`
}

// GetDepthRequest is the payload for querying order book depth.
// Depth is a synchronous read-path query, separate from the command stream.
type GetDepthRequest struct {
	Instrument string `json:"instrument"`
	Limit      uint32 `json:"limit"`
}

// GetStatsRequest is the payload for querying order book statistics.
type GetStatsRequest struct {
	Instrument string `json:"instrument"`
}
