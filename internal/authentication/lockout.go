package authentication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLockoutUnavailable = errors.New("lockout backend unavailable")

// LoginLimiter counts failed logins per email.
type LoginLimiter interface {
	// Locked reports whether email has reached the failure threshold.
	Locked(ctx context.Context, email string) (bool, error)
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}

type LockoutConfig struct {
	Threshold int
	// Window is both the counting window and the lockout duration.
	Window time.Duration
}

type redisLoginLimiter struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

func NewRedisLoginLimiter(client redis.UniversalClient, cfg LockoutConfig) LoginLimiter {
	return &redisLoginLimiter{redis: client, config: cfg}
}

func (l *redisLoginLimiter) key(email string) string {
	return "login-failures:" + email
}

func (l *redisLoginLimiter) Locked(ctx context.Context, email string) (bool, error) {
	if l.config.Threshold <= 0 {
		return false, nil
	}
	count, err := l.redis.Get(ctx, l.key(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return count >= int64(l.config.Threshold), nil
}

func (l *redisLoginLimiter) RecordFailure(ctx context.Context, email string) error {
	count, err := l.redis.Incr(ctx, l.key(email)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	// the window starts at the first failure and is not extended by later ones
	if count == 1 && l.config.Window > 0 {
		if err := l.redis.Expire(ctx, l.key(email), l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
	}
	return nil
}

func (l *redisLoginLimiter) Reset(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, l.key(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// noopLoginLimiter is used when no Redis address is configured.
type noopLoginLimiter struct{}

func NewNoopLoginLimiter() LoginLimiter { return noopLoginLimiter{} }

func (noopLoginLimiter) Locked(context.Context, string) (bool, error) { return false, nil }
func (noopLoginLimiter) RecordFailure(context.Context, string) error  { return nil }
func (noopLoginLimiter) Reset(context.Context, string) error          { return nil }
