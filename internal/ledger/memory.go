package ledger

import (
	"context"
	"fmt"
	"sync"
)

// Op names a gateway call for journaling and failure injection.
type Op string

const (
	OpMint     Op = "mint"
	OpTransfer Op = "transfer"
	OpFreeze   Op = "freeze"
	OpUnfreeze Op = "unfreeze"
	OpBurn     Op = "burn"
	OpWipe     Op = "wipe"
	OpBalance  Op = "balance"
)

// Call is one journaled gateway invocation.
type Call struct {
	Op      Op
	Kind    TokenKind
	From    string
	To      string
	Account string
	Amount  int64
}

// Memory is an in-process Ledger with real balance and freeze semantics. It
// journals every successful mutation so tests can assert which side effects
// ran, and supports per-op failure injection for partial-sequence tests.
type Memory struct {
	mu       sync.Mutex
	treasury string
	balances map[TokenKind]map[string]int64
	frozen   map[TokenKind]map[string]bool
	calls    []Call
	failures map[Op]error
}

// NewMemory builds a memory ledger whose mint and burn act on the given
// treasury account.
func NewMemory(treasury string) *Memory {
	return &Memory{
		treasury: treasury,
		balances: make(map[TokenKind]map[string]int64),
		frozen:   make(map[TokenKind]map[string]bool),
		failures: make(map[Op]error),
	}
}

func (m *Memory) Mint(ctx context.Context, kind TokenKind, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.pre(ctx, OpMint, kind); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("mint amount must be positive, got %d", amount)
	}
	m.credit(kind, m.treasury, amount)
	m.calls = append(m.calls, Call{Op: OpMint, Kind: kind, Account: m.treasury, Amount: amount})
	return nil
}

func (m *Memory) Transfer(ctx context.Context, kind TokenKind, from, to string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.pre(ctx, OpTransfer, kind); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive, got %d", amount)
	}
	if m.frozen[kind][from] {
		return fmt.Errorf("transfer %s from %s: %w", kind, from, ErrAccountFrozen)
	}
	if m.frozen[kind][to] {
		return fmt.Errorf("transfer %s to %s: %w", kind, to, ErrAccountFrozen)
	}
	if m.balances[kind][from] < amount {
		return fmt.Errorf("transfer %d %s from %s: %w", amount, kind, from, ErrInsufficientBalance)
	}
	m.balances[kind][from] -= amount
	m.credit(kind, to, amount)
	m.calls = append(m.calls, Call{Op: OpTransfer, Kind: kind, From: from, To: to, Amount: amount})
	return nil
}

func (m *Memory) Freeze(ctx context.Context, kind TokenKind, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.pre(ctx, OpFreeze, kind); err != nil {
		return err
	}
	if m.frozen[kind] == nil {
		m.frozen[kind] = make(map[string]bool)
	}
	m.frozen[kind][account] = true
	m.calls = append(m.calls, Call{Op: OpFreeze, Kind: kind, Account: account})
	return nil
}

func (m *Memory) Unfreeze(ctx context.Context, kind TokenKind, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.pre(ctx, OpUnfreeze, kind); err != nil {
		return err
	}
	if m.frozen[kind] != nil {
		delete(m.frozen[kind], account)
	}
	m.calls = append(m.calls, Call{Op: OpUnfreeze, Kind: kind, Account: account})
	return nil
}

func (m *Memory) Burn(ctx context.Context, kind TokenKind, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.pre(ctx, OpBurn, kind); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("burn amount must be positive, got %d", amount)
	}
	if m.balances[kind][m.treasury] < amount {
		return fmt.Errorf("burn %d %s: %w", amount, kind, ErrInsufficientBalance)
	}
	m.balances[kind][m.treasury] -= amount
	m.calls = append(m.calls, Call{Op: OpBurn, Kind: kind, Account: m.treasury, Amount: amount})
	return nil
}

// Wipe removes units by treasury authority. It ignores freeze state.
func (m *Memory) Wipe(ctx context.Context, kind TokenKind, account string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.pre(ctx, OpWipe, kind); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("wipe amount must be positive, got %d", amount)
	}
	if m.balances[kind][account] < amount {
		return fmt.Errorf("wipe %d %s from %s: %w", amount, kind, account, ErrInsufficientBalance)
	}
	m.balances[kind][account] -= amount
	m.calls = append(m.calls, Call{Op: OpWipe, Kind: kind, Account: account, Amount: amount})
	return nil
}

func (m *Memory) Balance(ctx context.Context, account string, kind TokenKind) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.pre(ctx, OpBalance, kind); err != nil {
		return 0, err
	}
	return m.balances[kind][account], nil
}

// Frozen reports whether the account is frozen for the token. Test helper.
func (m *Memory) Frozen(kind TokenKind, account string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frozen[kind][account]
}

// Credit seeds a balance directly, bypassing mint. Test helper for modeling
// value that arrived outside the coordinator's control.
func (m *Memory) Credit(kind TokenKind, account string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credit(kind, account, amount)
}

// Calls returns a copy of the journal of successful mutations.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor filters the journal by op.
func (m *Memory) CallsFor(op Op) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the journal without touching balances.
func (m *Memory) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// FailOn makes every subsequent call of the given op return err until
// cleared. Used to test partial execution sequences.
func (m *Memory) FailOn(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

// ClearFailures removes all injected failures.
func (m *Memory) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = make(map[Op]error)
}

func (m *Memory) pre(ctx context.Context, op Op, kind TokenKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("%s %q: %w", op, kind, ErrUnknownToken)
	}
	if err := m.failures[op]; err != nil {
		return err
	}
	return nil
}

func (m *Memory) credit(kind TokenKind, account string, amount int64) {
	if m.balances[kind] == nil {
		m.balances[kind] = make(map[string]int64)
	}
	m.balances[kind][account] += amount
}
