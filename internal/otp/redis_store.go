package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "otp:v1:"

// ExpiredRetention is how long a challenge key outlives the challenge, so a
// late verification is answered as expired rather than unknown.
const ExpiredRetention = 10 * time.Minute

// RedisStore keeps challenges in Redis. The challenge key lives for the
// challenge lifetime plus ExpiredRetention; the attempt counter lives in a
// sibling key with the same lifetime.
type RedisStore struct {
	client *redis.Client
	nowF   func() time.Time
}

// NewRedisStore builds a Redis-backed challenge store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, nowF: func() time.Time { return time.Now().UTC() }}
}

func challengeKey(mobile string) string { return redisKeyPrefix + mobile }
func attemptsKey(mobile string) string  { return redisKeyPrefix + mobile + ":attempts" }

// Put stores c and resets its attempt counter.
func (s *RedisStore) Put(ctx context.Context, c Challenge) error {
	ttl := c.ExpiresAt.Sub(s.nowF())
	if ttl <= 0 {
		return fmt.Errorf("otp challenge for %s already expired", c.Mobile)
	}
	c.Attempts = 0
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode otp challenge: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, challengeKey(c.Mobile), payload, ttl+ExpiredRetention)
		pipe.Del(ctx, attemptsKey(c.Mobile))
		return nil
	})
	if err != nil {
		return fmt.Errorf("store otp challenge: %w", err)
	}
	return nil
}

// Get returns the challenge for mobile with its current attempt count. A
// challenge past ExpiresAt is still returned until its key is evicted.
func (s *RedisStore) Get(ctx context.Context, mobile string) (Challenge, error) {
	vals, err := s.client.MGet(ctx, challengeKey(mobile), attemptsKey(mobile)).Result()
	if err != nil {
		return Challenge{}, fmt.Errorf("load otp challenge: %w", err)
	}
	raw, ok := vals[0].(string)
	if !ok {
		return Challenge{}, ErrNotFound
	}
	var c Challenge
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Challenge{}, fmt.Errorf("decode otp challenge: %w", err)
	}
	if raw, ok := vals[1].(string); ok {
		if attempts, err := strconv.Atoi(raw); err == nil {
			c.Attempts = attempts
		}
	}
	return c, nil
}

// IncrementAttempts bumps the attempt counter, keeping it no longer lived
// than the challenge itself.
func (s *RedisStore) IncrementAttempts(ctx context.Context, mobile string) (int, error) {
	ttl, err := s.client.PTTL(ctx, challengeKey(mobile)).Result()
	if err != nil {
		return 0, fmt.Errorf("load otp ttl: %w", err)
	}
	if ttl <= 0 {
		return 0, ErrNotFound
	}
	var incr *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, attemptsKey(mobile))
		pipe.PExpire(ctx, attemptsKey(mobile), ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}
	return int(incr.Val()), nil
}

// Delete removes the challenge. Only the caller whose DEL removed the key
// gets true.
func (s *RedisStore) Delete(ctx context.Context, mobile string) (bool, error) {
	n, err := s.client.Del(ctx, challengeKey(mobile)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("delete otp challenge: %w", err)
	}
	if n == 1 {
		s.client.Del(ctx, attemptsKey(mobile))
	}
	return n == 1, nil
}
