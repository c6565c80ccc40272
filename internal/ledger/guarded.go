package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"tessera/pkg/platform/circuit"
	"tessera/pkg/platform/sentinel"
)

// Guarded decorates a Ledger with a circuit breaker. While the circuit is
// open, calls fail fast with sentinel.ErrUnavailable instead of waiting out
// HTTP timeouts against a dead token service; one probe call per interval is
// let through so the breaker can close again once the service recovers.
type Guarded struct {
	next       Ledger
	breaker    *circuit.Breaker
	probeEvery time.Duration
	lastProbe  atomic.Int64
	log        *slog.Logger
}

// NewGuarded wraps next with breaker. probeEvery bounds how often an open
// circuit lets a call through to test the token service; zero or negative
// means 10s. A nil breaker gets defaults, a nil log falls back to
// slog.Default.
func NewGuarded(next Ledger, breaker *circuit.Breaker, probeEvery time.Duration, log *slog.Logger) *Guarded {
	if breaker == nil {
		breaker = circuit.New("ledger")
	}
	if probeEvery <= 0 {
		probeEvery = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Guarded{next: next, breaker: breaker, probeEvery: probeEvery, log: log}
}

func (g *Guarded) Mint(ctx context.Context, kind TokenKind, amount int64) error {
	return g.call(ctx, OpMint, func() error { return g.next.Mint(ctx, kind, amount) })
}

func (g *Guarded) Transfer(ctx context.Context, kind TokenKind, from, to string, amount int64) error {
	return g.call(ctx, OpTransfer, func() error { return g.next.Transfer(ctx, kind, from, to, amount) })
}

func (g *Guarded) Freeze(ctx context.Context, kind TokenKind, account string) error {
	return g.call(ctx, OpFreeze, func() error { return g.next.Freeze(ctx, kind, account) })
}

func (g *Guarded) Unfreeze(ctx context.Context, kind TokenKind, account string) error {
	return g.call(ctx, OpUnfreeze, func() error { return g.next.Unfreeze(ctx, kind, account) })
}

func (g *Guarded) Burn(ctx context.Context, kind TokenKind, amount int64) error {
	return g.call(ctx, OpBurn, func() error { return g.next.Burn(ctx, kind, amount) })
}

func (g *Guarded) Wipe(ctx context.Context, kind TokenKind, account string, amount int64) error {
	return g.call(ctx, OpWipe, func() error { return g.next.Wipe(ctx, kind, account, amount) })
}

func (g *Guarded) Balance(ctx context.Context, account string, kind TokenKind) (int64, error) {
	var balance int64
	err := g.call(ctx, OpBalance, func() error {
		var err error
		balance, err = g.next.Balance(ctx, account, kind)
		return err
	})
	return balance, err
}

func (g *Guarded) call(ctx context.Context, op Op, fn func() error) error {
	if g.breaker.IsOpen() && !g.allowProbe() {
		return fmt.Errorf("%s: token service circuit open: %w", op, sentinel.ErrUnavailable)
	}
	err := fn()
	g.record(ctx, op, err)
	return err
}

// record feeds the call outcome to the breaker. A definitive rejection counts
// as a success: the token service answered, it just said no. A call abandoned
// by the caller's context counts as neither.
func (g *Guarded) record(ctx context.Context, op Op, err error) {
	if err == nil || definitiveRejection(err) {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.log.Info("ledger circuit closed", "breaker", g.breaker.Name())
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.lastProbe.Store(time.Now().UnixNano())
		g.log.Warn("ledger circuit opened", "breaker", g.breaker.Name(), "op", string(op), "error", err)
	}
}

// allowProbe elects at most one caller per probe interval while the circuit
// is open.
func (g *Guarded) allowProbe() bool {
	now := time.Now().UnixNano()
	last := g.lastProbe.Load()
	if now-last < int64(g.probeEvery) {
		return false
	}
	return g.lastProbe.CompareAndSwap(last, now)
}

func definitiveRejection(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrAccountFrozen) ||
		errors.Is(err, ErrUnknownToken)
}
