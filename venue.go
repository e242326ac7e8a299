package venue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cutamar/govenue/protocol"
)

// EngineVersion is written into snapshot metadata so a restore can detect
// incompatible snapshot producers.
const EngineVersion = "1.0.0"

// Venue manages one matching engine per instrument. The instrument set is
// fixed at construction; commands for anything else are refused at the
// door. Each instrument runs on its own worker goroutine, so distinct
// instruments match in parallel while each individual book stays strictly
// single-threaded.
type Venue struct {
	isShutdown atomic.Bool
	workers    map[string]*worker
	publisher  EventPublisher
	serializer protocol.Serializer
}

// NewVenue creates a venue for the given instruments. Workers are created
// but not started; call Start before enqueueing commands.
func NewVenue(instruments []string, publisher EventPublisher) *Venue {
	v := &Venue{
		workers:    make(map[string]*worker, len(instruments)),
		publisher:  publisher,
		serializer: &protocol.DefaultJSONSerializer{},
	}
	for _, ins := range instruments {
		v.workers[ins] = newWorker(ins, publisher)
	}
	return v
}

// Start launches one goroutine per instrument. Worker faults are logged by
// the worker itself; Start does not block.
func (v *Venue) Start() {
	for _, w := range v.workers {
		go func(w *worker) {
			_ = w.run()
		}(w)
	}
}

// Instruments returns the fixed instrument set.
func (v *Venue) Instruments() []string {
	out := make([]string, 0, len(v.workers))
	for ins := range v.workers {
		out = append(out, ins)
	}
	return out
}

// EnqueueCommand decodes a wire command envelope and routes it to the
// owning worker. Returns ErrShutdown during shutdown and ErrNotFound for
// instruments the venue does not trade.
func (v *Venue) EnqueueCommand(ctx context.Context, cmd *protocol.Command) error {
	if v.isShutdown.Load() {
		return ErrShutdown
	}
	if cmd == nil || cmd.Instrument == "" {
		return ErrInvalidParam
	}

	w, found := v.workers[cmd.Instrument]
	if !found {
		return ErrNotFound
	}

	decoded, err := v.decodeCommand(cmd)
	if err != nil {
		return err
	}

	return w.enqueue(ctx, workerCommand{Type: workerCmdProcess, SeqID: cmd.SeqID, Cmd: decoded})
}

// decodeCommand turns a wire envelope into an engine command. String
// decimals are parsed here so the engine never sees malformed numerics.
func (v *Venue) decodeCommand(cmd *protocol.Command) (Command, error) {
	switch cmd.Type {
	case protocol.CmdSubmit:
		payload := &protocol.SubmitPayload{}
		if err := v.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return nil, fmt.Errorf("%w: submit payload: %s", ErrInvalidParam, err)
		}
		submit := &Submit{
			Instrument: cmd.Instrument,
			Side:       payload.Side,
			Type:       payload.OrderType,
			TIF:        payload.TimeInForce,
			PostOnly:   payload.PostOnly,
			ClientTS:   payload.ClientTS,
		}
		if payload.Price != "" {
			price, err := decimal.NewFromString(payload.Price)
			if err != nil {
				return nil, fmt.Errorf("%w: price %q: %s", ErrInvalidParam, payload.Price, err)
			}
			submit.Price = price
		}
		qty, err := decimal.NewFromString(payload.Qty)
		if err != nil {
			return nil, fmt.Errorf("%w: qty %q: %s", ErrInvalidParam, payload.Qty, err)
		}
		submit.Qty = qty
		return submit, nil

	case protocol.CmdCancel:
		payload := &protocol.CancelPayload{}
		if err := v.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return nil, fmt.Errorf("%w: cancel payload: %s", ErrInvalidParam, err)
		}
		return &Cancel{
			Instrument: cmd.Instrument,
			OrderID:    payload.OrderID,
			ClientTS:   payload.ClientTS,
		}, nil

	case protocol.CmdModify:
		payload := &protocol.ModifyPayload{}
		if err := v.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return nil, fmt.Errorf("%w: modify payload: %s", ErrInvalidParam, err)
		}
		modify := &Modify{
			Instrument: cmd.Instrument,
			OrderID:    payload.OrderID,
			ClientTS:   payload.ClientTS,
		}
		if payload.NewPrice != "" {
			price, err := decimal.NewFromString(payload.NewPrice)
			if err != nil {
				return nil, fmt.Errorf("%w: new price %q: %s", ErrInvalidParam, payload.NewPrice, err)
			}
			modify.NewPrice = decimal.NewNullDecimal(price)
		}
		if payload.NewQty != "" {
			qty, err := decimal.NewFromString(payload.NewQty)
			if err != nil {
				return nil, fmt.Errorf("%w: new qty %q: %s", ErrInvalidParam, payload.NewQty, err)
			}
			modify.NewQty = decimal.NewNullDecimal(qty)
		}
		return modify, nil

	default:
		return nil, fmt.Errorf("%w: command type %d", ErrInvalidParam, cmd.Type)
	}
}

// Submit places an order on the instrument's book asynchronously. Results
// arrive through the venue's EventPublisher.
// Returns ErrShutdown if the venue is shutting down or ErrNotFound if the
// instrument is not traded here.
func (v *Venue) Submit(ctx context.Context, instrument string, payload *protocol.SubmitPayload) error {
	bytes, err := v.serializer.Marshal(payload)
	if err != nil {
		return err
	}
	return v.EnqueueCommand(ctx, &protocol.Command{
		Instrument: instrument,
		Type:       protocol.CmdSubmit,
		Payload:    bytes,
	})
}

// Cancel removes an order from the instrument's book asynchronously.
func (v *Venue) Cancel(ctx context.Context, instrument string, payload *protocol.CancelPayload) error {
	bytes, err := v.serializer.Marshal(payload)
	if err != nil {
		return err
	}
	return v.EnqueueCommand(ctx, &protocol.Command{
		Instrument: instrument,
		Type:       protocol.CmdCancel,
		Payload:    bytes,
	})
}

// Modify changes the price or quantity of a live order asynchronously.
func (v *Venue) Modify(ctx context.Context, instrument string, payload *protocol.ModifyPayload) error {
	bytes, err := v.serializer.Marshal(payload)
	if err != nil {
		return err
	}
	return v.EnqueueCommand(ctx, &protocol.Command{
		Instrument: instrument,
		Type:       protocol.CmdModify,
		Payload:    bytes,
	})
}

// Depth returns the instrument's aggregated book, observed by the worker
// goroutine so it is consistent with the command stream.
func (v *Venue) Depth(ctx context.Context, instrument string, limit uint32) (*Depth, error) {
	w, found := v.workers[instrument]
	if !found {
		return nil, ErrNotFound
	}
	return w.depth(ctx, limit)
}

// Stats returns book statistics for one instrument.
func (v *Venue) Stats(ctx context.Context, instrument string) (*BookStats, error) {
	w, found := v.workers[instrument]
	if !found {
		return nil, ErrNotFound
	}
	return w.stats(ctx)
}

// LastCmdSeqID returns the durable-log sequence of the last command the
// instrument's worker processed.
func (v *Venue) LastCmdSeqID(instrument string) (uint64, error) {
	w, found := v.workers[instrument]
	if !found {
		return 0, ErrNotFound
	}
	return w.lastCmdSeqID.Load(), nil
}

// Shutdown gracefully shuts down all workers. It blocks until every worker
// has drained its channel or the context is cancelled.
func (v *Venue) Shutdown(ctx context.Context) error {
	v.isShutdown.Store(true)

	var wg sync.WaitGroup
	var errs []error
	var errMu sync.Mutex

	for _, w := range v.workers {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			if err := w.shutdown(ctx); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(w)
	}

	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// snapshotResult wraps a per-instrument snapshot with potential error.
type snapshotResult struct {
	snap *EngineSnapshot
	err  error
}

// collectSnapshots asks every worker for a consistent snapshot in parallel
// and streams the results.
func (v *Venue) collectSnapshots(ctx context.Context) chan snapshotResult {
	ch := make(chan snapshotResult)

	go func() {
		defer close(ch)
		var wg sync.WaitGroup

		for ins, w := range v.workers {
			wg.Add(1)
			go func(w *worker, instrument string) {
				defer wg.Done()
				snap, err := w.takeSnapshot(ctx)
				if err != nil {
					ch <- snapshotResult{err: fmt.Errorf("snapshot failed for instrument %s: %w", instrument, err)}
					return
				}
				if snap != nil {
					ch <- snapshotResult{snap: snap}
				}
			}(w, ins)
		}

		wg.Wait()
	}()

	return ch
}

// TakeSnapshot captures a consistent snapshot of every instrument and
// writes it to the specified directory: `snapshot.bin` (binary data) plus
// `metadata.json`. The write is atomic; a crash mid-snapshot leaves the
// previous snapshot intact.
func (v *Venue) TakeSnapshot(ctx context.Context, outputDir string) (*SnapshotMetadata, error) {
	tmpDir := outputDir + ".tmp"
	if err := os.RemoveAll(tmpDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, err
	}

	snapChan := v.collectSnapshots(ctx)

	// GlobalLastCmdSeqID is the max across instruments.
	var globalSeqID uint64

	binPath := filepath.Join(tmpDir, "snapshot.bin")
	binFile, err := os.Create(binPath)
	if err != nil {
		return nil, err
	}

	segments := make([]InstrumentSegment, 0)
	currentOffset := int64(0)
	var snapshotErrors []error

	for result := range snapChan {
		if result.err != nil {
			snapshotErrors = append(snapshotErrors, result.err)
			continue
		}

		snap := result.snap

		data, err := json.Marshal(snap)
		if err != nil {
			binFile.Close()
			return nil, err
		}

		n, err := binFile.Write(data)
		if err != nil {
			binFile.Close()
			return nil, err
		}

		segments = append(segments, InstrumentSegment{
			Instrument: snap.Instrument,
			Offset:     currentOffset,
			Length:     int64(n),
			Checksum:   crc32.ChecksumIEEE(data),
		})

		currentOffset += int64(n)

		if snap.LastCmdSeqID > globalSeqID {
			globalSeqID = snap.LastCmdSeqID
		}
	}

	if len(snapshotErrors) > 0 {
		binFile.Close()
		return nil, errors.Join(snapshotErrors...)
	}

	footer := SnapshotFileFooter{Instruments: segments}
	footerData, err := json.Marshal(footer)
	if err != nil {
		binFile.Close()
		return nil, err
	}

	if _, err := binFile.Write(footerData); err != nil {
		binFile.Close()
		return nil, err
	}

	// Footer length trailer, 4 bytes big endian.
	if len(footerData) > 4294967295 {
		binFile.Close()
		return nil, errors.New("footer too large")
	}
	footerLen := uint32(len(footerData))
	if err := binary.Write(binFile, binary.BigEndian, footerLen); err != nil {
		binFile.Close()
		return nil, err
	}

	if err := binFile.Sync(); err != nil {
		binFile.Close()
		return nil, err
	}
	if err := binFile.Close(); err != nil {
		return nil, err
	}

	snapshotChecksum, err := calculateFileCRC32(binPath)
	if err != nil {
		return nil, err
	}

	meta := &SnapshotMetadata{
		Timestamp:          time.Now().UnixNano(),
		GlobalLastCmdSeqID: globalSeqID,
		EngineVersion:      EngineVersion,
		SnapshotChecksum:   snapshotChecksum,
	}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}

	metaPath := filepath.Join(tmpDir, "metadata.json")
	if err := os.WriteFile(metaPath, metaBytes, 0600); err != nil {
		return nil, err
	}

	if err := os.RemoveAll(outputDir); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpDir, outputDir); err != nil {
		return nil, err
	}

	return meta, nil
}

// RestoreFromSnapshot rebuilds every instrument's engine from a snapshot
// directory and starts the workers. Returns the metadata so the caller
// knows the command log offset to resume replay from.
func (v *Venue) RestoreFromSnapshot(inputDir string) (*SnapshotMetadata, error) {
	metaPath := filepath.Join(inputDir, "metadata.json")
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta SnapshotMetadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, err
	}

	binPath := filepath.Join(inputDir, "snapshot.bin")
	binFile, err := os.Open(binPath)
	if err != nil {
		return nil, err
	}
	defer binFile.Close()

	fileChecksum, err := calculateFileCRC32(binPath)
	if err != nil {
		return nil, err
	}
	if fileChecksum != meta.SnapshotChecksum {
		return nil, fmt.Errorf("%w: snapshot.bin checksum mismatch", ErrSnapshotCorrupt)
	}

	stat, err := binFile.Stat()
	if err != nil {
		return nil, err
	}
	fileSize := stat.Size()
	if fileSize < 4 {
		return nil, fmt.Errorf("%w: snapshot.bin truncated", ErrSnapshotCorrupt)
	}

	footerLenBytes := make([]byte, 4)
	if _, err := binFile.ReadAt(footerLenBytes, fileSize-4); err != nil {
		return nil, err
	}
	footerLen := binary.BigEndian.Uint32(footerLenBytes)

	footerOffset := fileSize - 4 - int64(footerLen)
	if footerOffset < 0 {
		return nil, fmt.Errorf("%w: footer length out of range", ErrSnapshotCorrupt)
	}
	footerBytes := make([]byte, footerLen)
	if _, err := binFile.ReadAt(footerBytes, footerOffset); err != nil {
		return nil, err
	}

	var footer SnapshotFileFooter
	if err := json.Unmarshal(footerBytes, &footer); err != nil {
		return nil, err
	}

	for _, segment := range footer.Instruments {
		segmentData := make([]byte, segment.Length)
		if _, err := binFile.ReadAt(segmentData, segment.Offset); err != nil {
			return nil, err
		}

		if crc32.ChecksumIEEE(segmentData) != segment.Checksum {
			return nil, fmt.Errorf("%w: checksum mismatch for instrument %s", ErrSnapshotCorrupt, segment.Instrument)
		}

		var snap EngineSnapshot
		if err := json.Unmarshal(segmentData, &snap); err != nil {
			return nil, err
		}

		engine, err := RestoreEngine(&snap)
		if err != nil {
			return nil, err
		}

		w := newWorker(segment.Instrument, v.publisher)
		w.engine = engine
		w.lastCmdSeqID.Store(snap.LastCmdSeqID)
		v.workers[segment.Instrument] = w

		go func(w *worker) {
			_ = w.run()
		}(w)
	}

	return &meta, nil
}

// calculateFileCRC32 computes the CRC32 (IEEE) of an entire file by
// streaming it, so large snapshots do not need to fit in memory.
func calculateFileCRC32(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}
