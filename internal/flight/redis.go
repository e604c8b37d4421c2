package flight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// Redis Guard
// =============================================================================

const redisKeyPrefix = "storefront:flight:"

// compareAndSet moves KEYS[1] from ARGV[1] to ARGV[2], with an optional
// expiry in milliseconds (ARGV[3], 0 for none).
var compareAndSet = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

// compareAndDelete deletes KEYS[1] only while it holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard shares guard state between service instances. A failed action
// deletes its key, so Failed is reported as Idle.
type RedisGuard struct {
	client *redis.Client
	config Config
	logger *slog.Logger
}

// NewRedisGuard creates a guard backed by Redis and checks connectivity.
func NewRedisGuard(ctx context.Context, client *redis.Client, config Config, logger *slog.Logger) (*RedisGuard, error) {
	const op = "flight.NewRedisGuard"

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisGuard{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// Acquire sets the key to InFlight only if it does not exist.
func (g *RedisGuard) Acquire(ctx context.Context, key string) error {
	const op = "flight.Acquire"

	ok, err := g.client.SetNX(ctx, redisKeyPrefix+key, string(StateInFlight), g.config.InFlightTTL).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		g.logger.Debug("guard rejected acquire", "key", key)
		return ErrInFlight
	}
	return nil
}

// Succeed moves InFlight to Succeeded and holds it for HoldTTL.
func (g *RedisGuard) Succeed(ctx context.Context, key string) error {
	const op = "flight.Succeed"

	res, err := compareAndSet.Run(ctx, g.client,
		[]string{redisKeyPrefix + key},
		string(StateInFlight), string(StateSucceeded), g.config.HoldTTL.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res == 0 {
		return fmt.Errorf("%s: guard %q is not in flight", op, key)
	}
	return nil
}

// Fail releases an InFlight key so the user can try again.
func (g *RedisGuard) Fail(ctx context.Context, key string) error {
	const op = "flight.Fail"

	if err := compareAndDelete.Run(ctx, g.client, []string{redisKeyPrefix + key}, string(StateInFlight)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Release deletes the key.
func (g *RedisGuard) Release(ctx context.Context, key string) error {
	const op = "flight.Release"

	if err := g.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// State reads the key; a missing key is Idle.
func (g *RedisGuard) State(ctx context.Context, key string) (State, error) {
	const op = "flight.State"

	val, err := g.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return StateIdle, nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return State(val), nil
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string, dialTimeout time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if dialTimeout > 0 {
		opts.DialTimeout = dialTimeout
	}
	return redis.NewClient(opts), nil
}
