package venue

import "sync"

// EventPublisher receives every event the venue produces, in sequence
// order per instrument. Implementations must either process events
// synchronously before returning or copy them, since callers may reuse
// the event slice between commands.
type EventPublisher interface {
	Publish(...*Event)
}

// MemoryPublisher stores events in memory, useful for testing.
type MemoryPublisher struct {
	mu     sync.RWMutex
	Events []*Event
}

// NewMemoryPublisher creates a new MemoryPublisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{
		Events: make([]*Event, 0),
	}
}

// Publish appends events to the in-memory slice.
func (m *MemoryPublisher) Publish(events ...*Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		cpy := new(Event)
		*cpy = *ev
		m.Events = append(m.Events, cpy)
	}
}

// Count returns the number of events stored.
func (m *MemoryPublisher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Events)
}

// Get returns the event at the specified index.
func (m *MemoryPublisher) Get(index int) *Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.Events[index]
}

// All returns a copy of all events stored.
func (m *MemoryPublisher) All() []*Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*Event, len(m.Events))
	copy(events, m.Events)
	return events
}

// FanoutPublisher forwards every event batch to each wrapped publisher in
// order. The durable sink should come first so an event is persisted before
// anything downstream observes it.
type FanoutPublisher struct {
	sinks []EventPublisher
}

// NewFanoutPublisher creates a publisher chain.
func NewFanoutPublisher(sinks ...EventPublisher) *FanoutPublisher {
	return &FanoutPublisher{sinks: sinks}
}

// Publish forwards to every sink.
func (f *FanoutPublisher) Publish(events ...*Event) {
	for _, sink := range f.sinks {
		sink.Publish(events...)
	}
}

// DiscardPublisher discards all events, useful for benchmarking.
type DiscardPublisher struct {
}

// NewDiscardPublisher creates a new DiscardPublisher.
func NewDiscardPublisher() *DiscardPublisher {
	return &DiscardPublisher{}
}

// Publish does nothing.
func (p *DiscardPublisher) Publish(events ...*Event) {

}
