// Package broadcast publishes the venue's event stream to Kafka so
// external consumers (market data feeds, risk, archival) can follow the
// book without touching the engines.
package broadcast

import (
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"

	venue "github.com/cutamar/govenue"
)

// Broadcaster is a venue.EventPublisher that sends every event to a Kafka
// topic. Messages are keyed by instrument so each instrument's events stay
// ordered within one partition.
type Broadcaster struct {
	producer sarama.SyncProducer
	topic    string
}

// New connects a synchronous producer. Acks from all in-sync replicas are
// required: a broadcast event is either durably in Kafka or logged as
// failed, never silently dropped.
func New(brokers []string, topic string) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		producer: producer,
		topic:    topic,
	}, nil
}

// NewWithProducer wires an existing producer, used by tests.
func NewWithProducer(producer sarama.SyncProducer, topic string) *Broadcaster {
	return &Broadcaster{producer: producer, topic: topic}
}

// Publish implements venue.EventPublisher. Failures are logged and skipped;
// the durable event log, not Kafka, is the source of truth, so a consumer
// that misses events resynchronizes from there.
func (b *Broadcaster) Publish(events ...*venue.Event) {
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			slog.Error("broadcast marshal failed", "error", err, "seq", ev.Seq)
			continue
		}

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(ev.Instrument),
			Value: sarama.ByteEncoder(data),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			slog.Error("broadcast send failed", "error", err, "instrument", ev.Instrument, "seq", ev.Seq)
		}
	}
}

// Close shuts the producer down.
func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
