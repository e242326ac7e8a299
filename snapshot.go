package venue

// EngineSnapshot contains the full state of a single Engine: the sequencer
// counters plus every resting order, best price first and FIFO within a
// price level. Restoring it and replaying the commands recorded after
// LastCmdSeqID reproduces the exact live state.
type EngineSnapshot struct {
	Instrument   string    `json:"instrument"`
	Sequencer    Sequencer `json:"sequencer"`
	LastCmdSeqID uint64    `json:"last_cmd_seq_id"` // Last processed command sequence ID
	Bids         []Order   `json:"bids"`
	Asks         []Order   `json:"asks"`
}

// SnapshotMetadata holds the global metadata for a snapshot (stored in metadata.json).
type SnapshotMetadata struct {
	Timestamp          int64  `json:"timestamp"`              // Unix Nano
	GlobalLastCmdSeqID uint64 `json:"global_last_cmd_seq_id"` // Global command offset to resume from
	EngineVersion      string `json:"engine_version"`
	SnapshotChecksum   uint32 `json:"snapshot_checksum"` // CRC32 of the entire snapshot.bin file
}

// SnapshotFileFooter is the footer structure stored at the end of snapshot.bin.
// Layout: [BinaryData...][FooterJSON][FooterLength(4 bytes)]
type SnapshotFileFooter struct {
	Instruments []InstrumentSegment `json:"instruments"` // Index of per-instrument data in this file
}

// InstrumentSegment contains metadata for one instrument's data within the
// snapshot binary file.
type InstrumentSegment struct {
	Instrument string `json:"instrument"`
	Offset     int64  `json:"offset"`   // Start offset in snapshot.bin (relative to file start)
	Length     int64  `json:"length"`   // Length in bytes
	Checksum   uint32 `json:"checksum"` // CRC32 Checksum of this segment
}

// Snapshot captures the engine's full state. The caller passes the command
// sequence ID of the last command applied, so a restore knows where to
// resume replay.
func (e *Engine) Snapshot(lastCmdSeqID uint64) *EngineSnapshot {
	return &EngineSnapshot{
		Instrument:   e.instrument,
		Sequencer:    e.seq,
		LastCmdSeqID: lastCmdSeqID,
		Bids:         e.book.bids.toSnapshot(),
		Asks:         e.book.asks.toSnapshot(),
	}
}

// RestoreEngine rebuilds an engine from a snapshot. Orders are re-inserted
// in snapshot order, which is best price first and queue order within a
// level, so the intrusive lists come back in the same arrangement.
func RestoreEngine(snap *EngineSnapshot) (*Engine, error) {
	if snap == nil {
		return nil, ErrInvalidParam
	}

	e := NewEngine(snap.Instrument)
	e.seq = snap.Sequencer

	for i := range snap.Bids {
		order := snap.Bids[i]
		e.book.insert(&order)
	}
	for i := range snap.Asks {
		order := snap.Asks[i]
		e.book.insert(&order)
	}

	if err := e.book.checkInvariants(); err != nil {
		return nil, err
	}

	return e, nil
}
