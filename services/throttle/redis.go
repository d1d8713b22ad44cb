package throttlesvc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/spimentel1201/EduMF-sub001/core"
)

var keyPrefix = "login-attempts:"

// RedisThrottler counts failed attempts in Redis so that every API instance shares them.
type RedisThrottler struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

var _ core.Throttler = (*RedisThrottler)(nil)

func NewRedisThrottler(ctx context.Context, conf *core.Config) (*RedisThrottler, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return &RedisThrottler{client: client, maxAttempts: conf.LoginMaxAttempts, window: conf.LoginAttemptWindow}, nil
}

func (t *RedisThrottler) Allowed(ctx context.Context, key string) (bool, error) {
	n, err := t.client.Get(ctx, keyPrefix+key).Int()
	if err != nil {
		if err == redis.Nil {
			return true, nil
		}
		return false, errors.Wrap(err, "getting attempts")
	}
	return n < t.maxAttempts, nil
}

// Fail starts the window on the first failed attempt; later ones do not extend it.
// SET NX EX and INCR run in one MULTI/EXEC so a counter never outlives its expiry.
func (t *RedisThrottler) Fail(ctx context.Context, key string) error {
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, keyPrefix+key, 0, t.window)
		pipe.Incr(ctx, keyPrefix+key)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "incrementing attempts")
	}
	return nil
}

func (t *RedisThrottler) Reset(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return errors.Wrap(err, "deleting attempts")
	}
	return nil
}

func (t *RedisThrottler) Close() error {
	return t.client.Close()
}
