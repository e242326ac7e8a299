// Package eventlog persists the venue's event stream. The log is the
// durable source of truth for event sourcing: appended in sequence order
// per instrument, scanned back from any sequence to rebuild downstream
// state.
package eventlog

import (
	"context"
	"errors"
	"sync"

	venue "github.com/cutamar/govenue"
)

var (
	ErrNotFound = errors.New("eventlog: not found")
	ErrClosed   = errors.New("eventlog: closed")
)

// Log is an append-only, per-instrument ordered event store.
type Log interface {
	// Append stores events. Events must arrive in ascending Seq order per
	// instrument; appending is idempotent for already-stored sequences.
	Append(ctx context.Context, events ...*venue.Event) error

	// Scan replays stored events for one instrument with Seq >= fromSeq,
	// in ascending order, until fn returns an error or the log ends.
	Scan(ctx context.Context, instrument string, fromSeq uint64, fn func(*venue.Event) error) error

	// LastSeq returns the highest stored sequence for an instrument, zero
	// when the instrument has no events.
	LastSeq(ctx context.Context, instrument string) (uint64, error)

	Close() error
}

// MemoryLog keeps events in memory, useful for tests and ephemeral venues.
type MemoryLog struct {
	mu     sync.RWMutex
	events map[string][]*venue.Event
	closed bool
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{events: make(map[string][]*venue.Event)}
}

// Append implements Log.
func (m *MemoryLog) Append(_ context.Context, events ...*venue.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	for _, ev := range events {
		stream := m.events[ev.Instrument]
		if n := len(stream); n > 0 && stream[n-1].Seq >= ev.Seq {
			continue
		}
		cpy := new(venue.Event)
		*cpy = *ev
		m.events[ev.Instrument] = append(stream, cpy)
	}
	return nil
}

// Scan implements Log.
func (m *MemoryLog) Scan(_ context.Context, instrument string, fromSeq uint64, fn func(*venue.Event) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}

	for _, ev := range m.events[instrument] {
		if ev.Seq < fromSeq {
			continue
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

// LastSeq implements Log.
func (m *MemoryLog) LastSeq(_ context.Context, instrument string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}

	stream := m.events[instrument]
	if len(stream) == 0 {
		return 0, nil
	}
	return stream[len(stream)-1].Seq, nil
}

// Close implements Log.
func (m *MemoryLog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
