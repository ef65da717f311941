package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	// Prefix namespaces the counter keys. Empty means "rl".
	Prefix           string
	MaxLoginAttempts int
	Cooldown         time.Duration
	EnableIPThrottle bool
}

// DefaultConfig allows five failures per email (and per IP) every
// fifteen minutes.
func DefaultConfig() Config {
	return Config{
		Prefix:           "rl",
		MaxLoginAttempts: 5,
		Cooldown:         15 * time.Minute,
		EnableIPThrottle: true,
	}
}

// Limiter enforces login budgets using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) (*Limiter, error) {
	if redisClient == nil {
		return nil, errors.New("rate: redis client is nil")
	}
	if cfg.MaxLoginAttempts <= 0 {
		return nil, errors.New("rate: MaxLoginAttempts must be > 0")
	}
	if cfg.Cooldown <= 0 {
		return nil, errors.New("rate: Cooldown must be > 0")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	return &Limiter{redis: redisClient, config: cfg}, nil
}

// CheckLogin reports [ErrRateLimited] when the email or the IP already used
// up its budget. It does not count the attempt.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	if err := l.checkCounter(ctx, l.emailKey(email)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, l.ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// RecordFailure counts one failed login for the email and the IP.
func (l *Limiter) RecordFailure(ctx context.Context, email, ip string) error {
	if _, err := l.incrementWithTTL(ctx, l.emailKey(email)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if _, err := l.incrementWithTTL(ctx, l.ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears the email counter after a successful login. The IP counter
// stays: one good password does not vouch for the whole address.
func (l *Limiter) Reset(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, l.emailKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current failure count for an email.
func (l *Limiter) Attempts(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, l.emailKey(email)).Int64()
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

func (l *Limiter) emailKey(email string) string {
	return l.config.Prefix + ":login:email:" + strings.ToLower(strings.TrimSpace(email))
}

func (l *Limiter) ipKey(ip string) string {
	return l.config.Prefix + ":login:ip:" + ip
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}
