package venue

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// corruptSnapshotFile flips one byte near the start of the file, which must
// fail the full-file CRC on restore.
func corruptSnapshotFile(t *testing.T, path string) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	data[0] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0600))
}

func TestCalculateFileCRC32(t *testing.T) {
	path := t.TempDir() + "/file.bin"
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0600))

	sum1, err := calculateFileCRC32(path)
	require.NoError(t, err)
	assert.NotZero(t, sum1)

	sum2, err := calculateFileCRC32(path)
	require.NoError(t, err)
	assert.Equal(t, sum1, sum2)

	require.NoError(t, os.WriteFile(path, []byte("hellp"), 0600))
	sum3, err := calculateFileCRC32(path)
	require.NoError(t, err)
	assert.NotEqual(t, sum1, sum3)

	_, err = calculateFileCRC32(t.TempDir() + "/missing.bin")
	assert.Error(t, err)
}

func TestEngineSnapshotCapturesSequencer(t *testing.T) {
	e := NewEngine(testInstrument)
	mustProcess(t, e, limitBuy(100, 10))
	mustProcess(t, e, limitSell(100, 4))

	snap := e.Snapshot(42)
	assert.Equal(t, testInstrument, snap.Instrument)
	assert.Equal(t, uint64(42), snap.LastCmdSeqID)
	assert.Equal(t, e.seq, snap.Sequencer)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, "6", snap.Bids[0].Remaining.String())
	assert.Empty(t, snap.Asks)

	// New order IDs after a restore continue after the snapshot's last ID.
	restored, err := RestoreEngine(snap)
	require.NoError(t, err)
	events := mustProcess(t, restored, limitSell(200, 1))
	assert.Equal(t, uint64(3), events[0].OrderID)
}
