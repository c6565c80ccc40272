package relay

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	dErrors "tessera/pkg/domain-errors"
)

// Dedup is the at-most-once claim set for deposit event IDs. MarkSeen
// atomically claims an ID: true means this caller saw it first and owns
// processing; false means the deposit is a redelivery. Claims expire after
// the retention TTL, which must exceed the upstream redelivery horizon.
type Dedup interface {
	MarkSeen(ctx context.Context, eventID string) (bool, error)
}

// Redis key prefix for claimed deposit events
const dedupKeyPrefix = "relay:deposit:"

// RedisDedup is the shared claim set for distributed deployments.
type RedisDedup struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDedup builds a Redis-backed dedup set with the given retention.
func NewRedisDedup(client *redis.Client, ttl time.Duration) *RedisDedup {
	return &RedisDedup{client: client, ttl: ttl}
}

// MarkSeen claims the event ID with SET NX, which is atomic across instances.
func (d *RedisDedup) MarkSeen(ctx context.Context, eventID string) (bool, error) {
	claimed, err := d.client.SetNX(ctx, dedupKeyPrefix+eventID, "1", d.ttl).Result()
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "claim deposit event")
	}
	return claimed, nil
}

// MemoryDedup is the in-process claim set for tests and dev mode.
type MemoryDedup struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryDedup builds an in-memory dedup set with the given retention.
// A zero TTL keeps claims forever.
func NewMemoryDedup(ttl time.Duration) *MemoryDedup {
	return &MemoryDedup{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (d *MemoryDedup) MarkSeen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if expiry, ok := d.seen[eventID]; ok {
		if expiry.IsZero() || now.Before(expiry) {
			return false, nil
		}
	}
	var expiry time.Time
	if d.ttl > 0 {
		expiry = now.Add(d.ttl)
	}
	d.seen[eventID] = expiry
	return true, nil
}
