package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Deduper marks webhook deliveries as seen. The provider retries deliveries
// and may send the same notification more than once; the state transitions
// are idempotent anyway, so this is load shedding, not correctness.
type Deduper interface {
	// Seen records the payload and reports whether it was already recorded
	// inside the TTL window.
	Seen(ctx context.Context, payload []byte) (bool, error)
}

type RedisDeduper struct {
	cli RedisClient
	ttl time.Duration
}

func NewDeduper(cli RedisClient, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{cli: cli, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, payload []byte) (bool, error) {
	sum := sha256.Sum256(payload)
	key := "webhook:seen:" + hex.EncodeToString(sum[:])
	ok, err := d.cli.SetNX(ctx, key, 1, d.ttl)
	if err != nil {
		return false, err
	}
	return !ok, nil
}
