package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour
	idempotencyPending   = "pending"
	idempotencyDone      = "done"
)

// releaseScript only deletes a reservation that has not been marked done,
// so a late release cannot reopen a completed purchase.
var releaseScript = redis.NewScript(`
local key = KEYS[1]

local current = redis.call('GET', key)
if current == ARGV[1] then
	redis.call('DEL', key)
	return 1
end

return 0
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, idempotencyPending, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, r.client, []string{idempotencyKeyPrefix + key}, idempotencyPending).Err()
}

func (r *RedisAdapter) CompleteIdempotency(ctx context.Context, key string) error {
	err := r.client.SetArgs(ctx, idempotencyKeyPrefix+key, idempotencyDone, redis.SetArgs{KeepTTL: true, Mode: "XX"}).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
