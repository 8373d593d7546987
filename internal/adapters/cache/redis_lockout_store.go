package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/ports"
)

const (
	lockoutKeyPrefix = "credential:lockout:"
	// failureMemory bounds how long a failure streak below the threshold is remembered.
	failureMemory = 24 * time.Hour
)

// RedisLockoutStore keeps failed-login counters per normalized email in Redis hashes.
type RedisLockoutStore struct {
	client redis.UniversalClient
}

func NewRedisLockoutStore(client redis.UniversalClient) *RedisLockoutStore {
	return &RedisLockoutStore{client: client}
}

func (s *RedisLockoutStore) Get(ctx context.Context, email string) (ports.LockoutState, error) {
	data, err := s.client.HGetAll(ctx, lockoutKeyPrefix+email).Result()
	if err != nil {
		return ports.LockoutState{}, err
	}
	return decodeLockout(data), nil
}

// RecordFailure bumps the counter; the call that reaches threshold stamps locked_until
// and shortens the key TTL to the lockout window.
func (s *RedisLockoutStore) RecordFailure(ctx context.Context, email string, now time.Time, threshold int, lockoutWindow time.Duration) (ports.LockoutState, error) {
	key := lockoutKeyPrefix + email

	count, err := s.client.HIncrBy(ctx, key, "failed_count", 1).Result()
	if err != nil {
		return ports.LockoutState{}, err
	}
	state := ports.LockoutState{FailedCount: int(count)}

	if threshold <= 0 || int(count) < threshold {
		if err := s.client.Expire(ctx, key, failureMemory).Err(); err != nil {
			return ports.LockoutState{}, err
		}
		return state, nil
	}

	lockedUntil := now.Add(lockoutWindow).UTC()
	if _, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, "locked_until", lockedUntil.Unix())
		p.Expire(ctx, key, lockoutWindow)
		return nil
	}); err != nil {
		return ports.LockoutState{}, err
	}
	state.LockedUntil = &lockedUntil
	return state, nil
}

func (s *RedisLockoutStore) Clear(ctx context.Context, email string) error {
	return s.client.Del(ctx, lockoutKeyPrefix+email).Err()
}

func decodeLockout(data map[string]string) ports.LockoutState {
	var state ports.LockoutState
	if raw, ok := data["failed_count"]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			state.FailedCount = n
		}
	}
	if raw, ok := data["locked_until"]; ok && raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil && unix > 0 {
			t := time.Unix(unix, 0).UTC()
			state.LockedUntil = &t
		}
	}
	return state
}
