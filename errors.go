package venue

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParam = errors.New("the param is invalid")
	ErrTimeout      = errors.New("timeout")
	ErrShutdown     = errors.New("venue is shutting down")
	ErrNotFound     = errors.New("not found")

	// ErrInvariant marks a fatal internal fault: the engine found its own
	// state corrupt (negative remaining, an empty price level still indexed,
	// a crossed book after matching). It is never used for business
	// rejections, which are surfaced as Rejected events. Callers must treat
	// it as unrecoverable and stop feeding the engine.
	ErrInvariant = errors.New("engine invariant violated")

	// ErrSequenceGap is returned by projections when an event stream skips
	// a sequence number.
	ErrSequenceGap = errors.New("event sequence gap")

	// ErrSnapshotCorrupt is returned when a snapshot fails checksum or
	// structural verification.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
)

// errInvariantf builds a fatal fault wrapping ErrInvariant so callers can
// distinguish corruption from business rejections with errors.Is.
func errInvariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
