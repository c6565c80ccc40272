package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"tessera/internal/coordinator/models"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/sentinel"
)

// completionRegistry fans terminal operation records out to waiters. It
// replaces timer polling with a structured wait: waiters register a channel,
// execution notifies it, and a store check covers waiters that register
// after the record already completed.
type completionRegistry struct {
	mu      sync.Mutex
	waiters map[id.Nonce][]chan *models.OperationRecord
}

func newCompletionRegistry() *completionRegistry {
	return &completionRegistry{
		waiters: make(map[id.Nonce][]chan *models.OperationRecord),
	}
}

// register returns a channel that receives the terminal record for nonce.
// The channel is buffered so notify never blocks on a slow waiter.
func (r *completionRegistry) register(nonce id.Nonce) chan *models.OperationRecord {
	ch := make(chan *models.OperationRecord, 1)
	r.mu.Lock()
	r.waiters[nonce] = append(r.waiters[nonce], ch)
	r.mu.Unlock()
	return ch
}

// unregister removes a waiter that gave up before notification.
func (r *completionRegistry) unregister(nonce id.Nonce, ch chan *models.OperationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	remaining := r.waiters[nonce][:0]
	for _, w := range r.waiters[nonce] {
		if w != ch {
			remaining = append(remaining, w)
		}
	}
	if len(remaining) == 0 {
		delete(r.waiters, nonce)
	} else {
		r.waiters[nonce] = remaining
	}
}

// notify delivers a terminal record to every registered waiter for its nonce.
// Non-terminal records are ignored so EXECUTING updates never release waiters.
func (r *completionRegistry) notify(rec *models.OperationRecord) {
	if rec == nil || !rec.IsTerminal() {
		return
	}
	r.mu.Lock()
	waiting := r.waiters[rec.Nonce]
	delete(r.waiters, rec.Nonce)
	r.mu.Unlock()

	for _, ch := range waiting {
		select {
		case ch <- rec:
		default:
		}
	}
}

// AwaitOutcome blocks until the operation for nonce reaches COMPLETED or
// FAILED, or until timeout elapses. Timing out is client-side only: the
// intent stays in the log and still executes when confirmed. A nonzero
// timeout bounds the wait; zero means wait until ctx is done.
func (s *Service) AwaitOutcome(ctx context.Context, nonce id.Nonce, timeout time.Duration) (*models.OperationRecord, error) {
	ch := s.completions.register(nonce)
	defer s.completions.unregister(nonce, ch)

	// Check after registering so a completion between the check and the wait
	// cannot be missed.
	rec, err := s.operations.FindByNonce(ctx, nonce)
	switch {
	case err == nil:
		if rec.IsTerminal() {
			return rec, nil
		}
	case errors.Is(err, sentinel.ErrNotFound):
		// No record yet: the submit may still be in flight on another
		// goroutine. The waiter stays registered.
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load operation record")
	}

	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case rec := <-ch:
		return rec, nil
	case <-timeoutC:
		return nil, dErrors.Newf(dErrors.CodeTimeout, "timed out waiting for operation %s", nonce)
	case <-ctx.Done():
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "context canceled waiting for operation")
	}
}
