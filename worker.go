package venue

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"
)

type workerCmdType uint8

const (
	workerCmdProcess workerCmdType = iota + 1
	workerCmdDepth
	workerCmdStats
	workerCmdSnapshot
)

// workerCommand is the unified envelope flowing through a worker's channel.
// Using a single channel keeps command ordering deterministic.
type workerCommand struct {
	Type  workerCmdType
	SeqID uint64 // Durable command log sequence, 0 when not command-sourced
	Cmd   Command
	Limit uint32   // For workerCmdDepth
	Resp  chan any // Optional: for synchronous response (e.g. depth queries)
}

// worker owns one instrument's engine and runs it from a single goroutine.
// All mutation flows through cmdChan; reads are answered over Resp channels
// so they observe a consistent book.
type worker struct {
	isShutdown       atomic.Bool
	isFaulted        atomic.Bool
	lastCmdSeqID     atomic.Uint64
	engine           *Engine
	publisher        EventPublisher
	cmdChan          chan workerCommand
	done             chan struct{}
	shutdownComplete chan struct{}
}

func newWorker(instrument string, publisher EventPublisher) *worker {
	return &worker{
		engine:           NewEngine(instrument),
		publisher:        publisher,
		cmdChan:          make(chan workerCommand, 32768),
		done:             make(chan struct{}),
		shutdownComplete: make(chan struct{}),
	}
}

// enqueue submits a command to the worker's channel.
// Returns ErrShutdown if the worker is stopping or has faulted.
func (w *worker) enqueue(ctx context.Context, cmd workerCommand) error {
	if w.isShutdown.Load() || w.isFaulted.Load() {
		return ErrShutdown
	}

	select {
	case w.cmdChan <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run processes commands until Shutdown is called, then drains the channel.
// A non-nil return means the engine reported an invariant fault: the book
// can no longer be trusted and the worker stops accepting commands.
func (w *worker) run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-w.done:
			return w.drain()
		case cmd := <-w.cmdChan:
			if err := w.handle(cmd); err != nil {
				w.fault(err)
				return err
			}
		}
	}
}

// drain processes all remaining commands in the channel before returning.
func (w *worker) drain() error {
	defer close(w.shutdownComplete)

	for {
		select {
		case cmd := <-w.cmdChan:
			if err := w.handle(cmd); err != nil {
				w.isFaulted.Store(true)
				logger.Error("engine fault during drain", "instrument", w.engine.Instrument(), "error", err)
				return err
			}
		default:
			return nil
		}
	}
}

// fault marks the worker unusable after an invariant violation and unblocks
// any Shutdown waiter.
func (w *worker) fault(err error) {
	w.isFaulted.Store(true)
	logger.Error("engine fault, worker halted", "instrument", w.engine.Instrument(), "error", err)
	close(w.shutdownComplete)
}

func (w *worker) handle(cmd workerCommand) error {
	switch cmd.Type {
	case workerCmdProcess:
		events, err := w.engine.Process(cmd.Cmd)
		if err != nil {
			return err
		}
		if len(events) > 0 {
			w.publisher.Publish(events...)
		}
	case workerCmdDepth:
		depth, err := w.engine.Depth(cmd.Limit)
		if cmd.Resp != nil {
			select {
			case cmd.Resp <- depthResult{depth: depth, err: err}:
			default:
				// Non-blocking send, if no one is listening, just drop it
			}
		}
	case workerCmdStats:
		if cmd.Resp != nil {
			select {
			case cmd.Resp <- w.engine.Stats():
			default:
			}
		}
	case workerCmdSnapshot:
		if cmd.Resp != nil {
			select {
			case cmd.Resp <- w.engine.Snapshot(w.lastCmdSeqID.Load()):
			default:
			}
		}
	}

	if cmd.SeqID > 0 {
		w.lastCmdSeqID.Store(cmd.SeqID)
	}
	return nil
}

type depthResult struct {
	depth *Depth
	err   error
}

// depth asks the worker goroutine for a consistent depth view.
func (w *worker) depth(ctx context.Context, limit uint32) (*Depth, error) {
	respChan := make(chan any, 1)
	if err := w.enqueue(ctx, workerCommand{Type: workerCmdDepth, Limit: limit, Resp: respChan}); err != nil {
		return nil, err
	}

	select {
	case res := <-respChan:
		result, ok := res.(depthResult)
		if !ok {
			return nil, ErrInvalidParam
		}
		return result.depth, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Second):
		return nil, ErrTimeout
	}
}

// stats asks the worker goroutine for book statistics.
func (w *worker) stats(ctx context.Context) (*BookStats, error) {
	respChan := make(chan any, 1)
	if err := w.enqueue(ctx, workerCommand{Type: workerCmdStats, Resp: respChan}); err != nil {
		return nil, err
	}

	select {
	case res := <-respChan:
		stats, ok := res.(*BookStats)
		if !ok {
			return nil, ErrInvalidParam
		}
		return stats, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Second):
		return nil, ErrTimeout
	}
}

// takeSnapshot asks the worker goroutine for a consistent snapshot.
func (w *worker) takeSnapshot(ctx context.Context) (*EngineSnapshot, error) {
	respChan := make(chan any, 1)
	if err := w.enqueue(ctx, workerCommand{Type: workerCmdSnapshot, Resp: respChan}); err != nil {
		return nil, err
	}

	select {
	case res := <-respChan:
		snap, ok := res.(*EngineSnapshot)
		if !ok {
			return nil, ErrInvalidParam
		}
		return snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return nil, ErrTimeout
	}
}

// shutdown signals the worker to stop and waits for the drain to finish.
func (w *worker) shutdown(ctx context.Context) error {
	if w.isShutdown.CompareAndSwap(false, true) {
		close(w.done)
	}

	select {
	case <-w.shutdownComplete:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
