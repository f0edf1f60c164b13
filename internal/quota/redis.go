package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/buntercodes/vid-gen/pkg/models"
)

const (
	usageKeyPrefix     = "quota:usage:"
	allowanceKeyPrefix = "quota:allowance:"

	fieldWeekStart  = "week_start"
	fieldVideosUsed = "videos_used"
)

// incrementScript adds ARGV[2] to the counter, resetting it first when the
// stored week differs from ARGV[1]. The rollover check and the mutation are
// one server-side step so concurrent callers cannot double-reset.
var incrementScript = redis.NewScript(`
local week = redis.call('HGET', KEYS[1], 'week_start')
if week ~= ARGV[1] then
	redis.call('HSET', KEYS[1], 'week_start', ARGV[1], 'videos_used', ARGV[2])
	return tonumber(ARGV[2])
end
return redis.call('HINCRBY', KEYS[1], 'videos_used', ARGV[2])
`)

// reserveScript increments only when the resulting count stays within
// ARGV[2]. Returns {count, granted}.
var reserveScript = redis.NewScript(`
local week = redis.call('HGET', KEYS[1], 'week_start')
if week ~= ARGV[1] then
	redis.call('HSET', KEYS[1], 'week_start', ARGV[1], 'videos_used', 0)
end
local used = tonumber(redis.call('HGET', KEYS[1], 'videos_used') or '0')
if used + 1 > tonumber(ARGV[2]) then
	return {used, 0}
end
used = redis.call('HINCRBY', KEYS[1], 'videos_used', 1)
return {used, 1}
`)

// releaseScript decrements the counter for the given week, flooring at zero.
// Records from another week are left untouched.
var releaseScript = redis.NewScript(`
local week = redis.call('HGET', KEYS[1], 'week_start')
if week ~= ARGV[1] then
	return 0
end
local used = tonumber(redis.call('HGET', KEYS[1], 'videos_used') or '0')
if used <= 0 then
	return 0
end
return redis.call('HINCRBY', KEYS[1], 'videos_used', -1)
`)

// RedisStore persists usage counters and allowance overrides in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a quota store backed by Redis
func NewRedisStore(host string, port int, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks store health
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func usageKey(userID string) string {
	return usageKeyPrefix + userID
}

func allowanceKey(userID string) string {
	return allowanceKeyPrefix + userID
}

// ReadUsage retrieves the usage record for a user, nil when absent
func (s *RedisStore) ReadUsage(ctx context.Context, userID string) (*models.UsageRecord, error) {
	fields, err := s.client.HGetAll(ctx, usageKey(userID)).Result()
	if err != nil {
		return nil, wrapUnavailable("failed to read usage", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	used, err := strconv.ParseInt(fields[fieldVideosUsed], 10, 64)
	if err != nil {
		return nil, wrapUnavailable("failed to parse usage counter", err)
	}

	return &models.UsageRecord{
		WeekStart:  fields[fieldWeekStart],
		VideosUsed: used,
	}, nil
}

// WriteUsage replaces the usage record for a user
func (s *RedisStore) WriteUsage(ctx context.Context, userID string, rec *models.UsageRecord) error {
	err := s.client.HSet(ctx, usageKey(userID),
		fieldWeekStart, rec.WeekStart,
		fieldVideosUsed, rec.VideosUsed,
	).Err()
	if err != nil {
		return wrapUnavailable("failed to write usage", err)
	}
	return nil
}

// IncrementUsage atomically adds amount to the counter, stamping weekStart
// as part of the same update
func (s *RedisStore) IncrementUsage(ctx context.Context, userID, weekStart string, amount int64) (int64, error) {
	count, err := incrementScript.Run(ctx, s.client, []string{usageKey(userID)}, weekStart, amount).Int64()
	if err != nil {
		return 0, wrapUnavailable("failed to increment usage", err)
	}
	return count, nil
}

// ReserveUsage increments the counter only if the result stays within limit
func (s *RedisStore) ReserveUsage(ctx context.Context, userID, weekStart string, limit int64) (int64, bool, error) {
	res, err := reserveScript.Run(ctx, s.client, []string{usageKey(userID)}, weekStart, limit).Int64Slice()
	if err != nil {
		return 0, false, wrapUnavailable("failed to reserve usage", err)
	}
	if len(res) != 2 {
		return 0, false, wrapUnavailable("failed to reserve usage",
			fmt.Errorf("unexpected script reply of length %d", len(res)))
	}
	return res[0], res[1] == 1, nil
}

// ReleaseUsage undoes one reserved slot for the given week
func (s *RedisStore) ReleaseUsage(ctx context.Context, userID, weekStart string) error {
	if err := releaseScript.Run(ctx, s.client, []string{usageKey(userID)}, weekStart).Err(); err != nil {
		return wrapUnavailable("failed to release usage", err)
	}
	return nil
}

// ReadAllowance retrieves the per-user allowance override
func (s *RedisStore) ReadAllowance(ctx context.Context, userID string) (int64, bool, error) {
	val, err := s.client.Get(ctx, allowanceKey(userID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapUnavailable("failed to read allowance", err)
	}

	credits, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, wrapUnavailable("failed to parse allowance", err)
	}
	return credits, true, nil
}

// WriteAllowance sets the per-user allowance override
func (s *RedisStore) WriteAllowance(ctx context.Context, userID string, credits int64) error {
	if err := s.client.Set(ctx, allowanceKey(userID), credits, 0).Err(); err != nil {
		return wrapUnavailable("failed to write allowance", err)
	}
	return nil
}
