package eventlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	venue "github.com/cutamar/govenue"
)

// BoltLog stores the event stream in a bbolt file, one bucket per
// instrument, keyed by big-endian sequence so cursor order equals event
// order.
type BoltLog struct {
	db *bolt.DB
}

// NewBoltLog opens (or creates) a bbolt-backed log at path.
func NewBoltLog(path string) (*BoltLog, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &BoltLog{db: db}, nil
}

// Close implements Log.
func (l *BoltLog) Close() error {
	return l.db.Close()
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// Append implements Log. Each call is one write transaction; a batch of
// events from a single command is stored atomically.
func (l *BoltLog) Append(_ context.Context, events ...*venue.Event) error {
	if len(events) == 0 {
		return nil
	}

	return l.db.Update(func(tx *bolt.Tx) error {
		for _, ev := range events {
			bucket, err := tx.CreateBucketIfNotExists([]byte(ev.Instrument))
			if err != nil {
				return err
			}

			key := seqKey(ev.Seq)
			if bucket.Get(key) != nil {
				continue
			}

			data, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if err := bucket.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Scan implements Log.
func (l *BoltLog) Scan(ctx context.Context, instrument string, fromSeq uint64, fn func(*venue.Event) error) error {
	return l.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(instrument))
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()
		for k, v := c.Seek(seqKey(fromSeq)); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			ev := new(venue.Event)
			if err := json.Unmarshal(v, ev); err != nil {
				return fmt.Errorf("decode event seq %d: %w", binary.BigEndian.Uint64(k), err)
			}
			if err := fn(ev); err != nil {
				return err
			}
		}
		return nil
	})
}

// LastSeq implements Log.
func (l *BoltLog) LastSeq(_ context.Context, instrument string) (uint64, error) {
	var last uint64
	err := l.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(instrument))
		if bucket == nil {
			return nil
		}
		if k, _ := bucket.Cursor().Last(); k != nil {
			last = binary.BigEndian.Uint64(k)
		}
		return nil
	})
	return last, err
}
