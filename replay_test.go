package venue

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replaySequence is a non-trivial command mix used by the determinism tests:
// resting orders, partial fills, level walks, cancels, modifies and
// rejections all appear.
func replaySequence() []Command {
	return []Command{
		limitBuy(100, 10),
		limitSell(105, 8),
		limitBuy(101, 3),
		limitSell(101, 5),
		marketSell(4),
		&Cancel{Instrument: testInstrument, OrderID: 1},
		&Cancel{Instrument: testInstrument, OrderID: 999},
		limitBuy(104, 2),
		&Modify{Instrument: testInstrument, OrderID: 2, NewPrice: decimal.NewNullDecimal(decimal.NewFromInt(103))},
		&Submit{Instrument: testInstrument, Side: Buy, Type: Limit, TIF: FOK, Price: decimal.NewFromInt(103), Qty: decimal.NewFromInt(100)},
		&Submit{Instrument: testInstrument, Side: Sell, Type: Limit, TIF: IOC, Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(6), ClientTS: 1700000000},
		marketBuy(1),
	}
}

func marshalEvents(t *testing.T, events []*Event) []byte {
	t.Helper()
	data, err := json.Marshal(events)
	require.NoError(t, err)
	return data
}

func TestReplayProducesIdenticalEvents(t *testing.T) {
	cmds := replaySequence()

	_, first, err := ReplayCommands(testInstrument, cmds)
	require.NoError(t, err)
	_, second, err := ReplayCommands(testInstrument, cmds)
	require.NoError(t, err)

	assert.Equal(t, marshalEvents(t, first), marshalEvents(t, second),
		"same commands must yield a byte-identical event stream")
}

func TestReplayRebuildsIdenticalBook(t *testing.T) {
	cmds := replaySequence()

	e1, _, err := ReplayCommands(testInstrument, cmds)
	require.NoError(t, err)
	e2, _, err := ReplayCommands(testInstrument, cmds)
	require.NoError(t, err)

	snap1, err := json.Marshal(e1.Snapshot(0))
	require.NoError(t, err)
	snap2, err := json.Marshal(e2.Snapshot(0))
	require.NoError(t, err)
	assert.Equal(t, snap1, snap2)
}

func TestEventsCarryNoWallClock(t *testing.T) {
	e := NewEngine(testInstrument)

	cmd := limitBuy(100, 1)
	cmd.ClientTS = 1234
	events := mustProcess(t, e, cmd)

	for _, ev := range events {
		assert.Equal(t, int64(1234), ev.ClientTS, "events echo the command timestamp verbatim")
	}
}

func TestEventSequenceStrictlyIncreasing(t *testing.T) {
	_, events, err := ReplayCommands(testInstrument, replaySequence())
	require.NoError(t, err)
	require.NotEmpty(t, events)

	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq, "no gaps, no duplicates")
	}
}

func TestTradeIDsSequential(t *testing.T) {
	_, events, err := ReplayCommands(testInstrument, replaySequence())
	require.NoError(t, err)

	var want uint64
	for _, ev := range events {
		if ev.Type == EventTrade {
			want++
			assert.Equal(t, want, ev.TradeID)
		}
	}
	assert.NotZero(t, want, "sequence must contain trades to be meaningful")
}

func TestSnapshotRestoreResumesIdentically(t *testing.T) {
	cmds := replaySequence()
	split := 6

	// Run the full sequence on one engine.
	full := NewEngine(testInstrument)
	var fullTail []*Event
	for i, cmd := range cmds {
		events, err := full.Process(cmd)
		require.NoError(t, err)
		if i >= split {
			fullTail = append(fullTail, events...)
		}
	}

	// Run the head on another, snapshot, restore, then run the tail.
	head := NewEngine(testInstrument)
	for _, cmd := range cmds[:split] {
		_, err := head.Process(cmd)
		require.NoError(t, err)
	}

	snap := head.Snapshot(uint64(split))
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded EngineSnapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored, err := RestoreEngine(&decoded)
	require.NoError(t, err)

	var restoredTail []*Event
	for _, cmd := range cmds[split:] {
		events, err := restored.Process(cmd)
		require.NoError(t, err)
		restoredTail = append(restoredTail, events...)
	}

	assert.Equal(t, marshalEvents(t, fullTail), marshalEvents(t, restoredTail),
		"a restored engine continues the event stream exactly where the snapshot left off")
}

func TestRestoreEngineValidation(t *testing.T) {
	_, err := RestoreEngine(nil)
	assert.ErrorIs(t, err, ErrInvalidParam)

	// A crossed snapshot must be refused.
	snap := &EngineSnapshot{
		Instrument: testInstrument,
		Bids: []Order{{
			ID: 1, Side: Buy, Type: Limit, Seq: 1,
			Price: decimal.NewFromInt(105), Original: decimal.NewFromInt(1), Remaining: decimal.NewFromInt(1),
		}},
		Asks: []Order{{
			ID: 2, Side: Sell, Type: Limit, Seq: 2,
			Price: decimal.NewFromInt(100), Original: decimal.NewFromInt(1), Remaining: decimal.NewFromInt(1),
		}},
	}
	_, err = RestoreEngine(snap)
	assert.ErrorIs(t, err, ErrInvariant)
}
