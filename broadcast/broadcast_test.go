package broadcast

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	venue "github.com/cutamar/govenue"
)

func TestBroadcasterPublish(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)

	ev := &venue.Event{
		Seq:        7,
		Type:       venue.EventTrade,
		Instrument: "BTC-USDT",
		OrderID:    2,
		Side:       venue.Buy,
		Price:      decimal.NewFromInt(100),
		Qty:        decimal.NewFromInt(1),
	}

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, "BTC-USDT", string(key))

		value, err := msg.Value.Encode()
		require.NoError(t, err)

		var got venue.Event
		require.NoError(t, json.Unmarshal(value, &got))
		assert.Equal(t, uint64(7), got.Seq)
		assert.Equal(t, venue.EventTrade, got.Type)
		return nil
	})

	b := NewWithProducer(producer, "venue.events")
	b.Publish(ev)

	require.NoError(t, b.Close())
}

func TestBroadcasterSendFailureDoesNotPanic(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	b := NewWithProducer(producer, "venue.events")
	b.Publish(&venue.Event{Seq: 1, Type: venue.EventRested, Instrument: "BTC-USDT"})

	require.NoError(t, b.Close())
}
