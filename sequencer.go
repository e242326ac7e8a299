package venue

// Sequencer owns the monotonically increasing identifiers that make the
// engine's output well-defined and replay-stable: event sequence numbers,
// trade IDs, order IDs and insertion (time-priority) sequence numbers.
// The engine processes commands single-threaded, so plain counters suffice;
// fields are exported only so snapshots can capture and restore them.
type Sequencer struct {
	EventSeq uint64 `json:"event_seq"`
	TradeSeq uint64 `json:"trade_seq"`
	OrderSeq uint64 `json:"order_seq"`
	QueueSeq uint64 `json:"queue_seq"`
}

func (s *Sequencer) nextEvent() uint64 {
	s.EventSeq++
	return s.EventSeq
}

func (s *Sequencer) nextTrade() uint64 {
	s.TradeSeq++
	return s.TradeSeq
}

// nextOrderID hands out an order ID. IDs are never reused, even by orders
// that later cancel or fill.
func (s *Sequencer) nextOrderID() uint64 {
	s.OrderSeq++
	return s.OrderSeq
}

// nextQueueSeq hands out an insertion sequence. It advances independently of
// order IDs because a modified order keeps its ID but loses its place in line.
func (s *Sequencer) nextQueueSeq() uint64 {
	s.QueueSeq++
	return s.QueueSeq
}
