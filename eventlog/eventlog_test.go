package eventlog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	venue "github.com/cutamar/govenue"
)

func testEvents(instrument string, seqs ...uint64) []*venue.Event {
	events := make([]*venue.Event, 0, len(seqs))
	for _, seq := range seqs {
		events = append(events, &venue.Event{
			Seq:        seq,
			Type:       venue.EventRested,
			Instrument: instrument,
			OrderID:    seq,
			Side:       venue.Buy,
			Price:      decimal.NewFromInt(100),
			Qty:        decimal.NewFromInt(1),
			Remaining:  decimal.NewFromInt(1),
		})
	}
	return events
}

func runLogContract(t *testing.T, log Log) {
	ctx := context.Background()

	last, err := log.LastSeq(ctx, "BTC-USDT")
	require.NoError(t, err)
	assert.Zero(t, last)

	require.NoError(t, log.Append(ctx, testEvents("BTC-USDT", 1, 2, 3)...))
	require.NoError(t, log.Append(ctx, testEvents("ETH-USDT", 1)...))

	// Re-appending stored sequences is a no-op.
	require.NoError(t, log.Append(ctx, testEvents("BTC-USDT", 3)...))

	last, err = log.LastSeq(ctx, "BTC-USDT")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last)

	var got []uint64
	require.NoError(t, log.Scan(ctx, "BTC-USDT", 0, func(ev *venue.Event) error {
		got = append(got, ev.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{1, 2, 3}, got)

	// Scan from the middle.
	got = nil
	require.NoError(t, log.Scan(ctx, "BTC-USDT", 2, func(ev *venue.Event) error {
		got = append(got, ev.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{2, 3}, got)

	// Instruments are isolated.
	got = nil
	require.NoError(t, log.Scan(ctx, "ETH-USDT", 0, func(ev *venue.Event) error {
		got = append(got, ev.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{1}, got)

	// Unknown instrument scans nothing.
	require.NoError(t, log.Scan(ctx, "DOGE-USDT", 0, func(*venue.Event) error {
		t.Fatal("unexpected event")
		return nil
	}))
}

func TestMemoryLog(t *testing.T) {
	log := NewMemoryLog()
	runLogContract(t, log)
	require.NoError(t, log.Close())
	assert.ErrorIs(t, log.Append(context.Background(), testEvents("BTC-USDT", 4)...), ErrClosed)
}

func TestBoltLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	log, err := NewBoltLog(path)
	require.NoError(t, err)

	runLogContract(t, log)
	require.NoError(t, log.Close())

	// Events survive reopening.
	log, err = NewBoltLog(path)
	require.NoError(t, err)
	defer log.Close()

	last, err := log.LastSeq(context.Background(), "BTC-USDT")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last)
}

func TestPublisherPersistsEvents(t *testing.T) {
	log := NewMemoryLog()
	pub := NewPublisher(log)

	pub.Publish(testEvents("BTC-USDT", 1, 2)...)

	last, err := log.LastSeq(context.Background(), "BTC-USDT")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), last)
}

func TestBoltLogRoundTripsDecimals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	log, err := NewBoltLog(path)
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()
	ev := testEvents("BTC-USDT", 1)[0]
	ev.Price = decimal.RequireFromString("123.456")
	require.NoError(t, log.Append(ctx, ev))

	require.NoError(t, log.Scan(ctx, "BTC-USDT", 1, func(got *venue.Event) error {
		assert.True(t, got.Price.Equal(ev.Price))
		assert.Equal(t, ev.OrderID, got.OrderID)
		return nil
	}))
}
