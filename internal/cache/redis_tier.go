package cache

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTier is the "shared KV" tier of spec.md §4.6, backed by
// github.com/redis/go-redis/v9. Grounded on jordigilh-kubernaut's
// go.mod, which carries the same client for its own shared cache.
type RedisTier struct {
	client *redis.Client
	prefix string
}

func NewRedisTier(addr string) *RedisTier {
	return &RedisTier{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "signalpress:cache:",
	}
}

func (t *RedisTier) Name() string { return "shared" }

// Ping checks the Redis connection directly, rather than a Get that
// would otherwise look like an ordinary (and misleading) cache miss.
func (t *RedisTier) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

func (t *RedisTier) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := t.client.Get(ctx, t.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (t *RedisTier) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return t.client.Set(ctx, t.prefix+key, value, ttl).Err()
}

// Invalidate deletes explicit keys and, for pattern/tag invalidation,
// scans the tier's keyspace under the cache prefix. Tags are not a
// native Redis concept, so tag-based invalidation here is approximated
// by scanning a parallel tag-index set maintained by SetTagged.
func (t *RedisTier) Invalidate(ctx context.Context, keys []string, pattern string, tags []string) (int, error) {
	n := 0
	for _, k := range keys {
		res, err := t.client.Del(ctx, t.prefix+k).Result()
		if err != nil {
			return n, err
		}
		n += int(res)
	}

	if pattern != "" {
		iter := t.client.Scan(ctx, 0, t.prefix+strings.TrimSuffix(pattern, "*")+"*", 0).Iterator()
		for iter.Next(ctx) {
			if err := t.client.Del(ctx, iter.Val()).Err(); err == nil {
				n++
			}
		}
		if err := iter.Err(); err != nil {
			return n, err
		}
	}

	for _, tag := range tags {
		members, err := t.client.SMembers(ctx, t.prefix+"tag:"+tag).Result()
		if err != nil {
			continue
		}
		for _, k := range members {
			if res, err := t.client.Del(ctx, k).Result(); err == nil {
				n += int(res)
			}
		}
		t.client.Del(ctx, t.prefix+"tag:"+tag)
	}

	return n, nil
}

// SetTagged additionally indexes key under each tag's set, so later
// tag-based Invalidate calls can find it.
func (t *RedisTier) SetTagged(ctx context.Context, key, value string, ttl time.Duration, tags []string) error {
	if err := t.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	for _, tag := range tags {
		if err := t.client.SAdd(ctx, t.prefix+"tag:"+tag, t.prefix+key).Err(); err != nil {
			return err
		}
	}
	return nil
}
