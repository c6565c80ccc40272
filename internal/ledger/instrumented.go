package ledger

import (
	"context"
	"time"

	"tessera/internal/ledger/metrics"
)

// Instrumented decorates a Ledger with per-call metrics. It changes no
// behavior; wrap the real client with it in main.
type Instrumented struct {
	next    Ledger
	metrics *metrics.Metrics
}

func NewInstrumented(next Ledger, m *metrics.Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

func (l *Instrumented) Mint(ctx context.Context, kind TokenKind, amount int64) error {
	start := time.Now()
	err := l.next.Mint(ctx, kind, amount)
	l.metrics.ObserveCall(string(OpMint), time.Since(start), err)
	return err
}

func (l *Instrumented) Transfer(ctx context.Context, kind TokenKind, from, to string, amount int64) error {
	start := time.Now()
	err := l.next.Transfer(ctx, kind, from, to, amount)
	l.metrics.ObserveCall(string(OpTransfer), time.Since(start), err)
	return err
}

func (l *Instrumented) Freeze(ctx context.Context, kind TokenKind, account string) error {
	start := time.Now()
	err := l.next.Freeze(ctx, kind, account)
	l.metrics.ObserveCall(string(OpFreeze), time.Since(start), err)
	return err
}

func (l *Instrumented) Unfreeze(ctx context.Context, kind TokenKind, account string) error {
	start := time.Now()
	err := l.next.Unfreeze(ctx, kind, account)
	l.metrics.ObserveCall(string(OpUnfreeze), time.Since(start), err)
	return err
}

func (l *Instrumented) Burn(ctx context.Context, kind TokenKind, amount int64) error {
	start := time.Now()
	err := l.next.Burn(ctx, kind, amount)
	l.metrics.ObserveCall(string(OpBurn), time.Since(start), err)
	return err
}

func (l *Instrumented) Wipe(ctx context.Context, kind TokenKind, account string, amount int64) error {
	start := time.Now()
	err := l.next.Wipe(ctx, kind, account, amount)
	l.metrics.ObserveCall(string(OpWipe), time.Since(start), err)
	return err
}

func (l *Instrumented) Balance(ctx context.Context, account string, kind TokenKind) (int64, error) {
	start := time.Now()
	balance, err := l.next.Balance(ctx, account, kind)
	l.metrics.ObserveCall(string(OpBalance), time.Since(start), err)
	return balance, err
}
