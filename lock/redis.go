package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL = 2 * time.Minute
	keyPrefix  = "storefront:lock:"
)

// Redis implements Locker with SET NX plus a TTL so a crashed holder cannot
// block a key forever.
type Redis struct {
	client   *redis.Client
	ttl      time.Duration
	newOwner func() string
}

func NewRedis(client *redis.Client, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{client: client, ttl: ttl, newOwner: uuid.NewString}, nil
}

func (r *Redis) Acquire(ctx context.Context, key string) (Lease, error) {
	owner := r.newOwner()
	fullKey := keyPrefix + key
	ok, err := r.client.SetNX(ctx, fullKey, owner, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &redisLease{client: r.client, key: fullKey, owner: owner}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	owner  string
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release frees the key only if this lease still owns it. The owner check and
// the delete run as one script.
func (l *redisLease) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	l.owner = ""
	return nil
}

// NewRedisClient parses a redis:// URL and verifies the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
