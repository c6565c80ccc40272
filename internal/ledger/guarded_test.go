package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/pkg/platform/circuit"
	"tessera/pkg/platform/sentinel"
)

var errDown = errors.New("connect: connection refused")

func TestGuarded_PassesThroughWhileClosed(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory("treasury")
	mem.Credit(TokenReward, "alice", 50)

	g := NewGuarded(mem, circuit.New("ledger"), time.Hour, nil)

	require.NoError(t, g.Transfer(ctx, TokenReward, "alice", "bob", 20))

	balance, err := g.Balance(ctx, "bob", TokenReward)
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance)
	assert.Len(t, mem.CallsFor(OpTransfer), 1)
}

func TestGuarded_FailsFastOnceOpen(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory("treasury")
	mem.FailOn(OpMint, errDown)

	breaker := circuit.New("ledger", circuit.WithFailureThreshold(3))
	g := NewGuarded(mem, breaker, time.Hour, nil)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, g.Mint(ctx, TokenReward, 10), errDown)
	}
	require.True(t, breaker.IsOpen())

	// The inner ledger would succeed now, but the open circuit never asks it.
	mem.ClearFailures()
	err := g.Mint(ctx, TokenReward, 10)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Empty(t, mem.CallsFor(OpMint))
}

func TestGuarded_ProbeClosesCircuitAfterRecovery(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory("treasury")
	mem.FailOn(OpMint, errDown)

	breaker := circuit.New("ledger", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(1))
	g := NewGuarded(mem, breaker, 10*time.Millisecond, nil)

	require.ErrorIs(t, g.Mint(ctx, TokenReward, 10), errDown)
	require.True(t, breaker.IsOpen())

	mem.ClearFailures()
	require.Eventually(t, func() bool {
		return g.Mint(ctx, TokenReward, 10) == nil
	}, 2*time.Second, 5*time.Millisecond, "a probe should reach the recovered service")
	assert.False(t, breaker.IsOpen())

	// Fully closed again: calls flow without waiting for probe slots.
	require.NoError(t, g.Mint(ctx, TokenReward, 10))
}

func TestGuarded_DomainRejectionsDoNotTrip(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory("treasury")

	breaker := circuit.New("ledger", circuit.WithFailureThreshold(2))
	g := NewGuarded(mem, breaker, time.Hour, nil)

	for i := 0; i < 5; i++ {
		err := g.Transfer(ctx, TokenReward, "empty", "bob", 10)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	}
	assert.False(t, breaker.IsOpen(), "the service answered every call")
}

func TestGuarded_RejectionResetsOutageStreak(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory("treasury")

	breaker := circuit.New("ledger", circuit.WithFailureThreshold(2))
	g := NewGuarded(mem, breaker, time.Hour, nil)

	mem.FailOn(OpMint, errDown)
	require.ErrorIs(t, g.Mint(ctx, TokenReward, 10), errDown)

	// A rejection proves the service is reachable and restarts the streak.
	require.ErrorIs(t, g.Transfer(ctx, TokenReward, "empty", "bob", 10), ErrInsufficientBalance)

	require.ErrorIs(t, g.Mint(ctx, TokenReward, 10), errDown)
	assert.False(t, breaker.IsOpen())

	require.ErrorIs(t, g.Mint(ctx, TokenReward, 10), errDown)
	assert.True(t, breaker.IsOpen())
}

func TestGuarded_CallerCancellationDoesNotTrip(t *testing.T) {
	mem := NewMemory("treasury")

	breaker := circuit.New("ledger", circuit.WithFailureThreshold(1))
	g := NewGuarded(mem, breaker, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, g.Mint(ctx, TokenReward, 10), context.Canceled)
	}
	assert.False(t, breaker.IsOpen(), "an abandoned call says nothing about the service")
}
