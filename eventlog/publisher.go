package eventlog

import (
	"context"
	"log/slog"

	venue "github.com/cutamar/govenue"
)

// Publisher adapts a Log to the venue's EventPublisher interface so the
// event stream is persisted as it is produced. Append failures are logged;
// the matching path never blocks on storage errors.
type Publisher struct {
	log Log
}

// NewPublisher wraps a Log.
func NewPublisher(log Log) *Publisher {
	return &Publisher{log: log}
}

// Publish appends the batch to the log.
func (p *Publisher) Publish(events ...*venue.Event) {
	if err := p.log.Append(context.Background(), events...); err != nil {
		slog.Error("event log append failed", "error", err, "events", len(events))
	}
}
