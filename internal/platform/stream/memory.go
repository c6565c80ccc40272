package stream

import (
	"context"
	"sync"
	"time"
)

// MemoryLog is an in-process Log for tests and single-node deployments
// without a broker. Semantics mirror KafkaLog: dense positions from zero,
// subscribers replay history then follow the tail.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Entry
	waiters map[chan struct{}]struct{}
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		waiters: make(map[chan struct{}]struct{}),
	}
}

func (l *MemoryLog) Append(ctx context.Context, key, value []byte) (Position, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	pos := Position(len(l.entries))
	l.entries = append(l.entries, Entry{
		Position:  pos,
		Key:       append([]byte(nil), key...),
		Value:     append([]byte(nil), value...),
		Timestamp: time.Now(),
	})
	for ch := range l.waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	l.mu.Unlock()

	return pos, nil
}

func (l *MemoryLog) Subscribe(ctx context.Context, from Position, h Handler) error {
	next := from
	if next < PositionStart {
		next = PositionStart
	}

	notify := make(chan struct{}, 1)
	l.mu.Lock()
	l.waiters[notify] = struct{}{}
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.waiters, notify)
		l.mu.Unlock()
	}()

	for {
		batch := l.entriesFrom(next)
		for _, e := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := h.Handle(ctx, e); err != nil {
				return err
			}
			next = e.Position + 1
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-notify:
		}
	}
}

// Len reports how many entries the log holds.
func (l *MemoryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// EntriesFrom returns a copy of the confirmed entries at or after from.
// Lets tests drive handlers directly without a live subscription.
func (l *MemoryLog) EntriesFrom(from Position) []Entry {
	if from < PositionStart {
		from = PositionStart
	}
	return l.entriesFrom(from)
}

func (l *MemoryLog) entriesFrom(from Position) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if int(from) >= len(l.entries) {
		return nil
	}
	batch := make([]Entry, len(l.entries)-int(from))
	copy(batch, l.entries[from:])
	return batch
}
