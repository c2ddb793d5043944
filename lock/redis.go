package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ReleaseScript deletes the key only if it still holds our token.
const ReleaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Redis is a Locker shared by every process using the same Redis.
type Redis struct {
	client redis.Cmdable
	prefix string
	token  func() string
}

// NewRedis returns a Redis locker. Keys are stored under prefix.
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix, token: uuid.NewString}
}

// WithToken replaces the token generator.
func (r *Redis) WithToken(fn func() string) *Redis {
	r.token = fn
	return r
}

var _ Locker = (*Redis)(nil)

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	full := r.prefix + key
	token := r.token()

	ok, err := r.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", full, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	return func(ctx context.Context) error {
		if err := r.client.Eval(ctx, ReleaseScript, []string{full}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("release %s: %w", full, err)
		}
		return nil
	}, nil
}
