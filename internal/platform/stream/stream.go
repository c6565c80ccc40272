// Package stream provides the append-only, totally ordered record log that
// coordination relies on. Entries are confirmed with a position before any
// side effect may run, and subscribers replay them in position order.
package stream

import (
	"context"
	"time"
)

// Position is the total-order index the log assigns to a confirmed entry.
// Positions are dense and start at zero.
type Position int64

// PositionStart subscribes from the beginning of the log.
const PositionStart Position = 0

// Entry is a confirmed log record.
type Entry struct {
	Position  Position
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes one confirmed entry. Returning an error stops the
// subscription; transient execution problems must be absorbed by the handler
// itself so the log keeps advancing.
type Handler interface {
	Handle(ctx context.Context, e Entry) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, e Entry) error

func (f HandlerFunc) Handle(ctx context.Context, e Entry) error {
	return f(ctx, e)
}

// Log is the ordered record stream.
//
// Append blocks until the entry is confirmed and returns its position.
// Subscribe delivers every entry at or after from, in order, until ctx is
// canceled or the handler returns an error.
type Log interface {
	Append(ctx context.Context, key, value []byte) (Position, error)
	Subscribe(ctx context.Context, from Position, h Handler) error
}
