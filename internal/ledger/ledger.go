// Package ledger is the gateway to the external token ledger. Every call is
// its own unit of work; the gateway never composes calls into a transaction,
// so callers own the consequences of partial sequences.
package ledger

import (
	"context"
	"errors"
)

// TokenKind distinguishes the token classes the coordinator touches.
type TokenKind string

const (
	// TokenMembership is the non-transferable credential token. Exactly one
	// unit per active credential, frozen on the holder account.
	TokenMembership TokenKind = "membership"
	// TokenReward is the fungible unit accrued against the quota.
	TokenReward TokenKind = "reward"
	// TokenDeposit represents escrowed deposit value held in the vault until
	// termination pays it out.
	TokenDeposit TokenKind = "deposit"
)

// Valid reports whether the kind is one of the known token classes.
func (k TokenKind) Valid() bool {
	switch k {
	case TokenMembership, TokenReward, TokenDeposit:
		return true
	}
	return false
}

func (k TokenKind) String() string { return string(k) }

// Sentinel errors shared by all gateway implementations.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountFrozen       = errors.New("account frozen for token")
	ErrUnknownToken        = errors.New("unknown token kind")
)

// Ledger exposes the treasury-authority primitives of the external token
// service. Mint and Burn act on the treasury supply; Transfer moves units
// between accounts; Freeze and Unfreeze gate an account's ability to move a
// token; Wipe removes units from any account by authority.
type Ledger interface {
	Mint(ctx context.Context, kind TokenKind, amount int64) error
	Transfer(ctx context.Context, kind TokenKind, from, to string, amount int64) error
	Freeze(ctx context.Context, kind TokenKind, account string) error
	Unfreeze(ctx context.Context, kind TokenKind, account string) error
	Burn(ctx context.Context, kind TokenKind, amount int64) error
	Wipe(ctx context.Context, kind TokenKind, account string, amount int64) error
	Balance(ctx context.Context, account string, kind TokenKind) (int64, error)
}
