package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds failed-login throttle parameters.
type Config struct {
	MaxAttempts      int
	Cooldown         time.Duration
	EnableIPThrottle bool
	Prefix           string
}

// Limiter counts failed logins per identity, and optionally per client IP,
// in fixed Redis windows.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "gs:"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Check returns ErrRateLimited once the identity or IP has used up its
// failure budget for the current window.
func (l *Limiter) Check(ctx context.Context, identity, ip string) error {
	if err := l.checkCounter(ctx, l.identityKey(identity)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, l.ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// RecordFailure counts one failed attempt. It returns ErrRateLimited when
// this attempt exhausted the budget.
func (l *Limiter) RecordFailure(ctx context.Context, identity, ip string) error {
	count, err := l.incrementWithTTL(ctx, l.identityKey(identity))
	if err != nil {
		return err
	}
	limited := count >= int64(l.config.MaxAttempts)

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, l.ipKey(ip))
		if err != nil {
			return err
		}
		limited = limited || count >= int64(l.config.MaxAttempts)
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the identity counter after a successful login. The IP
// counter is left alone so one valid account cannot launder attempts.
func (l *Limiter) Reset(ctx context.Context, identity string) error {
	if err := l.redis.Del(ctx, l.identityKey(identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failures recorded for identity in the current window.
func (l *Limiter) Attempts(ctx context.Context, identity string) (int, error) {
	count, err := l.redis.Get(ctx, l.identityKey(identity)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) identityKey(identity string) string {
	return l.config.Prefix + "lf:" + strconv.Itoa(len(identity)) + ":" + identity
}

func (l *Limiter) ipKey(ip string) string {
	return l.config.Prefix + "lfi:" + ip
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the TTL is set only by the first failure.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}
