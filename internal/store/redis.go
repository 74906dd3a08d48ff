package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashureev/astrovoice/internal/domain"
)

const (
	// Redis key prefix for sessions.
	sessionKeyPrefix = "session:"
	// activityKey is a sorted set of session keys scored by last activity in ms.
	activityKey = "sessions:activity"
	// Default TTL for session keys.
	defaultRedisTTL = 7 * 24 * time.Hour
)

// RedisStore implements SessionStore using Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed store. A non-positive ttl uses the default.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(platform, userID string) string {
	return sessionKeyPrefix + domain.SessionKey(platform, userID)
}

// Load implements SessionStore.
func (s *RedisStore) Load(ctx context.Context, userID, platform string) (*domain.SessionContext, error) {
	val, err := s.client.Get(ctx, s.key(platform, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	return decodeSession(val)
}

// Save implements SessionStore.
func (s *RedisStore) Save(ctx context.Context, sc *domain.SessionContext) error {
	val, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	key := s.key(sc.Platform, sc.UserID)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, val, s.ttl)
		pipe.ZAdd(ctx, activityKey, redis.Z{Score: float64(sc.LastActivity.UnixMilli()), Member: key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

// SweepExpired implements SessionStore.
func (s *RedisStore) SweepExpired(ctx context.Context, before time.Time) (int64, error) {
	return s.eachInactive(ctx, before,
		func(sc *domain.SessionContext) bool { return sc.State != domain.StateEnded },
		func(pipe redis.Pipeliner, key string, sc *domain.SessionContext) error {
			sc.State = domain.StateEnded
			val, err := json.Marshal(sc)
			if err != nil {
				return fmt.Errorf("encode session: %w", err)
			}
			pipe.Set(ctx, key, val, redis.KeepTTL)
			return nil
		})
}

// PurgeEnded implements SessionStore.
func (s *RedisStore) PurgeEnded(ctx context.Context, before time.Time) (int64, error) {
	return s.eachInactive(ctx, before,
		func(sc *domain.SessionContext) bool { return sc.State == domain.StateEnded },
		func(pipe redis.Pipeliner, key string, _ *domain.SessionContext) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, activityKey, key)
			return nil
		})
}

// eachInactive applies update to every session whose activity score is below
// before and for which want holds. Each key is watched, and the stored value
// is re-checked, so a turn saved after the index was read is left alone.
// Index entries whose key has already expired are removed.
func (s *RedisStore) eachInactive(
	ctx context.Context,
	before time.Time,
	want func(sc *domain.SessionContext) bool,
	update func(pipe redis.Pipeliner, key string, sc *domain.SessionContext) error,
) (int64, error) {
	keys, err := s.client.ZRangeByScore(ctx, activityKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis range activity: %w", err)
	}

	var n int64
	for _, key := range keys {
		applied := false
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			val, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				if err := tx.ZRem(ctx, activityKey, key).Err(); err != nil {
					return fmt.Errorf("redis drop stale index entry: %w", err)
				}
				return nil
			}
			if err != nil {
				return fmt.Errorf("redis get session: %w", err)
			}
			sc, err := decodeSession(val)
			if err != nil {
				return err
			}
			if !sc.LastActivity.Before(before) || !want(sc) {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				return update(pipe, key, sc)
			})
			if err != nil {
				return err
			}
			applied = true
			return nil
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			// Saved by a turn while being swept.
			continue
		}
		if err != nil {
			return n, fmt.Errorf("redis update session: %w", err)
		}
		if applied {
			n++
		}
	}
	return n, nil
}

// Ping implements SessionStore.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements SessionStore.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeSession(b []byte) (*domain.SessionContext, error) {
	var sc domain.SessionContext
	if err := json.Unmarshal(b, &sc); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if sc.Entities == nil {
		sc.Entities = make(map[domain.EntityKind]string)
	}
	return &sc, nil
}
