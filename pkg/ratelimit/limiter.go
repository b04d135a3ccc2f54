package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/craftora/backoffice/pkg/config"
)

// counterScript increments the fixed-window counter and sets the window
// expiry on first hit. Returns the current count and the remaining window
// in milliseconds.
var counterScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// Result is the outcome of one rate-limit check
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	Limit      int
	Window     time.Duration
}

// Limiter enforces per-identity request limits with a Redis fixed-window
// counter. All instances sharing the Redis see the same counters.
type Limiter struct {
	client *redis.Client
	cfg    config.RateLimitConfig
	script *redis.Script
}

// NewLimiter creates a rate limiter backed by the given Redis client
func NewLimiter(client *redis.Client, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		cfg:    cfg,
		script: counterScript,
	}
}

// Allow records one request for the identity on the endpoint and reports
// whether it is within the limit. A disabled limiter or a non-positive
// limit always allows.
func (l *Limiter) Allow(ctx context.Context, endpoint, identity string) (Result, error) {
	limit := l.cfg.Limit + l.cfg.Burst
	window := l.cfg.Window()

	if !l.cfg.Enabled || l.cfg.Limit <= 0 {
		return Result{Allowed: true, Remaining: l.cfg.Limit, Limit: l.cfg.Limit, Window: window}, nil
	}

	key := fmt.Sprintf("%s:%s:%s", l.cfg.RedisPrefix, endpoint, identity)

	values, err := l.script.Run(ctx, l.client, []string{key}, window.Milliseconds()).Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(values) != 2 {
		return Result{}, fmt.Errorf("rate limit script returned %d values", len(values))
	}

	count := toInt(values[0])
	ttl := time.Duration(toInt(values[1])) * time.Millisecond

	result := Result{
		Allowed:   count <= limit,
		Remaining: max(0, limit-count),
		Limit:     l.cfg.Limit,
		Window:    window,
	}
	if !result.Allowed {
		result.RetryAfter = ttl
	}

	return result, nil
}

func toInt(value any) int {
	switch v := value.(type) {
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
