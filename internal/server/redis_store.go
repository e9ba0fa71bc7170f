package server

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// redisAttemptStore tracks login attempts in Redis using a counter with a
// window-scoped TTL. The first increment arms the expiry; once the counter
// exceeds the limit the remaining TTL becomes the retry-after hint.
type redisAttemptStore struct {
	client  redis.UniversalClient
	timeout time.Duration
}

func newRedisAttemptStore(addr, password string, timeout time.Duration) *redisAttemptStore {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{addr},
		Password:     password,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
	return &redisAttemptStore{client: client, timeout: timeout}
}

func (s *redisAttemptStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		expiry := window
		if expiry < time.Second {
			expiry = time.Second
		}
		if err := s.client.Expire(ctx, key, expiry).Err(); err != nil {
			return false, 0, err
		}
	}
	if count <= int64(limit) {
		return true, 0, nil
	}
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		return false, window, nil
	}
	return false, ttl, nil
}

func (s *redisAttemptStore) Close() error {
	return s.client.Close()
}
