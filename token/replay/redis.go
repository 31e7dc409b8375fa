package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// minTTL keeps a consumed entry alive briefly even when the token is about to
// expire, so a racing redemption still sees it.
const minTTL = time.Second

var _ Guard = (*RedisGuard)(nil)

// RedisGuard shares redeemed tokens across server instances. Each entry is
// stored with a TTL equal to the token's remaining lifetime, so Redis removes
// it once the token could no longer be replayed anyway.
type RedisGuard struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisGuard(rdb redis.UniversalClient, prefix string) *RedisGuard {
	return &RedisGuard{
		rdb:    rdb,
		prefix: prefix,
		now:    time.Now,
	}
}

// NewRedisGuardFromURL parses a redis:// URL and pings the server.
func NewRedisGuardFromURL(ctx context.Context, url, prefix string) (*RedisGuard, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	return NewRedisGuard(rdb, prefix), nil
}

func (g *RedisGuard) Contains(ctx context.Context, token string) (bool, error) {
	n, err := g.rdb.Exists(ctx, g.key(token)).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis exists")
	}
	return n > 0, nil
}

// Consume relies on SET NX, which is atomic on the server.
func (g *RedisGuard) Consume(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(g.now())
	if ttl < minTTL {
		ttl = minTTL
	}
	ok, err := g.rdb.SetNX(ctx, g.key(token), 1, ttl).Result()
	if err != nil {
		return errors.Wrap(err, "redis setnx")
	}
	if !ok {
		return ErrReplayed
	}
	return nil
}

// Sweep is a no-op: Redis expires entries itself.
func (g *RedisGuard) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

// Ping checks the Redis connection.
func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.rdb.Ping(ctx).Err()
}

func (g *RedisGuard) Close() error {
	return g.rdb.Close()
}

// key hashes the token so raw credentials never sit in Redis.
func (g *RedisGuard) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return g.prefix + hex.EncodeToString(sum[:])
}
