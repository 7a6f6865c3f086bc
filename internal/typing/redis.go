package typing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long an indicator survives without being refreshed.
const DefaultTTL = 2 * time.Minute

// TTLMargin covers the store writes around a generation call.
const TTLMargin = 30 * time.Second

// TTLFor returns a TTL that outlives a turn bounded by generation, so a
// slow reply does not drop the indicator while the turn is still running.
func TTLFor(generation time.Duration) time.Duration {
	return max(DefaultTTL, generation+TTLMargin)
}

// RedisStore keeps indicators in Redis hashes with a TTL, so an indicator
// left behind by a crashed process expires on its own.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl, now: time.Now}
}

func typingKey(userID int64) string {
	return fmt.Sprintf("disha:typing:%d", userID)
}

func (s *RedisStore) Set(ctx context.Context, userID int64, isTyping bool) error {
	key := typingKey(userID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"is_typing", strconv.FormatBool(isTyping),
		"updated_at", s.now().UTC().Format(time.RFC3339Nano))
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set typing %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (State, error) {
	key := typingKey(userID)
	vals, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return State{}, fmt.Errorf("get typing %s: %w", key, err)
	}
	if len(vals) == 0 {
		return State{}, nil
	}
	var st State
	st.IsTyping, _ = strconv.ParseBool(vals["is_typing"])
	st.UpdatedAt, _ = time.Parse(time.RFC3339Nano, vals["updated_at"])
	return st, nil
}
