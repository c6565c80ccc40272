package ledger

//go:generate mockgen -source=ledger.go -destination=mocks/mocks.go -package=mocks Ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	treasury = "treasury"
	vault    = "vault"
	holder   = "0.0.4821"
)

func TestMemoryMintAndTransfer(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(treasury)

	require.NoError(t, m.Mint(ctx, TokenReward, 500))

	balance, err := m.Balance(ctx, treasury, TokenReward)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	require.NoError(t, m.Transfer(ctx, TokenReward, treasury, holder, 200))

	balance, err = m.Balance(ctx, holder, TokenReward)
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance)

	balance, err = m.Balance(ctx, treasury, TokenReward)
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)
}

func TestMemoryTransferInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(treasury)

	err := m.Transfer(ctx, TokenReward, treasury, holder, 1)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// Nothing journaled for the failed call.
	assert.Empty(t, m.CallsFor(OpTransfer))
}

func TestMemoryFreezeBlocksTransfers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(treasury)

	require.NoError(t, m.Mint(ctx, TokenMembership, 1))
	require.NoError(t, m.Transfer(ctx, TokenMembership, treasury, holder, 1))
	require.NoError(t, m.Freeze(ctx, TokenMembership, holder))
	assert.True(t, m.Frozen(TokenMembership, holder))

	// Frozen holder can neither send nor receive the token.
	err := m.Transfer(ctx, TokenMembership, holder, treasury, 1)
	require.ErrorIs(t, err, ErrAccountFrozen)

	m.Credit(TokenMembership, treasury, 1)
	err = m.Transfer(ctx, TokenMembership, treasury, holder, 1)
	require.ErrorIs(t, err, ErrAccountFrozen)

	// Freeze scopes to one token kind.
	m.Credit(TokenReward, holder, 10)
	require.NoError(t, m.Transfer(ctx, TokenReward, holder, treasury, 10))

	require.NoError(t, m.Unfreeze(ctx, TokenMembership, holder))
	require.NoError(t, m.Transfer(ctx, TokenMembership, holder, treasury, 1))
}

func TestMemoryBurnFromTreasury(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(treasury)

	require.NoError(t, m.Mint(ctx, TokenMembership, 1))
	require.NoError(t, m.Burn(ctx, TokenMembership, 1))

	balance, err := m.Balance(ctx, treasury, TokenMembership)
	require.NoError(t, err)
	assert.Zero(t, balance)

	require.ErrorIs(t, m.Burn(ctx, TokenMembership, 1), ErrInsufficientBalance)
}

func TestMemoryWipeIgnoresFreeze(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(treasury)

	m.Credit(TokenMembership, holder, 1)
	require.NoError(t, m.Freeze(ctx, TokenMembership, holder))

	require.NoError(t, m.Wipe(ctx, TokenMembership, holder, 1))

	balance, err := m.Balance(ctx, holder, TokenMembership)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestMemoryUnknownTokenKind(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(treasury)

	err := m.Mint(ctx, TokenKind("governance"), 1)
	require.ErrorIs(t, err, ErrUnknownToken)
}

func TestMemoryFailureInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(treasury)

	boom := errors.New("gateway unavailable")
	m.FailOn(OpTransfer, boom)

	require.NoError(t, m.Mint(ctx, TokenReward, 100))
	require.ErrorIs(t, m.Transfer(ctx, TokenReward, treasury, holder, 100), boom)

	// Balances untouched by the failed transfer.
	balance, err := m.Balance(ctx, treasury, TokenReward)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	m.ClearFailures()
	require.NoError(t, m.Transfer(ctx, TokenReward, treasury, holder, 100))
}

func TestMemoryJournal(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(treasury)

	require.NoError(t, m.Mint(ctx, TokenReward, 50))
	require.NoError(t, m.Transfer(ctx, TokenReward, treasury, holder, 50))

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, OpMint, calls[0].Op)
	assert.Equal(t, int64(50), calls[0].Amount)
	assert.Equal(t, OpTransfer, calls[1].Op)
	assert.Equal(t, treasury, calls[1].From)
	assert.Equal(t, holder, calls[1].To)

	m.ResetCalls()
	assert.Empty(t, m.Calls())
}
