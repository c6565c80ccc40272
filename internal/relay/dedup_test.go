package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryDedupClaimsOnce(t *testing.T) {
	d := NewMemoryDedup(time.Hour)
	ctx := context.Background()

	first, err := d.MarkSeen(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, first)

	second, err := d.MarkSeen(ctx, "evt-1")
	require.NoError(t, err)
	require.False(t, second)

	other, err := d.MarkSeen(ctx, "evt-2")
	require.NoError(t, err)
	require.True(t, other)
}

func TestMemoryDedupExpiresClaims(t *testing.T) {
	d := NewMemoryDedup(time.Minute)
	now := time.Now()
	d.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := d.MarkSeen(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, first)

	now = now.Add(30 * time.Second)
	mid, err := d.MarkSeen(ctx, "evt-1")
	require.NoError(t, err)
	require.False(t, mid)

	now = now.Add(31 * time.Second)
	expired, err := d.MarkSeen(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, expired, "a claim past its TTL is reclaimable")
}

func TestMemoryDedupZeroTTLKeepsForever(t *testing.T) {
	d := NewMemoryDedup(0)
	now := time.Now()
	d.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := d.MarkSeen(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, first)

	now = now.Add(1000 * time.Hour)
	again, err := d.MarkSeen(ctx, "evt-1")
	require.NoError(t, err)
	require.False(t, again)
}

func TestMemoryDedupConcurrentClaims(t *testing.T) {
	d := NewMemoryDedup(time.Hour)
	ctx := context.Background()

	const claimers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := d.MarkSeen(ctx, "evt-1")
			require.NoError(t, err)
			if first {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	require.Equal(t, 1, won, "exactly one concurrent claimer may win")
}
