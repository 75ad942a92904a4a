package http

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/jobcard-service/internal/config"
)

// tokenBucketScript refills and takes one token atomically.
// Returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])
if tokens == nil or last_refill == nil then
  tokens = capacity
  last_refill = now_ms
end

local elapsed = math.max(0, now_ms - last_refill)
local intervals = math.floor(elapsed / interval_ms)
if intervals > 0 then
  tokens = math.min(capacity, tokens + intervals * refill_tokens)
  last_refill = last_refill + intervals * interval_ms
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)
return { allowed, tokens, retry_after_ms }
`)

type bucket struct {
	tokens     int64
	lastRefill time.Time
	lastSeen   time.Time
}

// RateLimiter is a token bucket per client and route. It keeps state in Redis
// when a client is configured and in process memory otherwise.
type RateLimiter struct {
	cfg    config.RateLimitConfig
	client *redis.Client
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	local     map[string]*bucket
	lastSweep time.Time
}

// NewRateLimiter builds a limiter; client may be nil.
func NewRateLimiter(cfg config.RateLimitConfig, client *redis.Client, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		cfg:    cfg,
		client: client,
		logger: logger,
		now:    time.Now,
		local:  make(map[string]*bucket),
	}
}

type decision struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

// Handler rejects requests once the bucket is empty.
func (l *RateLimiter) Handler() fiber.Handler {
	if !l.cfg.Enabled {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return func(c *fiber.Ctx) error {
		key := l.key(c)
		d, err := l.take(c.UserContext(), key)
		if err != nil {
			// fail open
			l.logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			return c.Next()
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Capacity))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
		if !d.allowed {
			secs := int(math.Ceil(d.retry.Seconds()))
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many attempts. Please wait a moment and try again.")
		}
		return c.Next()
	}
}

func (l *RateLimiter) key(c *fiber.Ctx) string {
	ip := c.IP()
	if ip == "" {
		ip = "unknown"
	}
	return strings.Join([]string{l.cfg.Prefix, "ip", ip, "route", c.Method() + " " + c.Path()}, ":")
}

func (l *RateLimiter) take(ctx context.Context, key string) (decision, error) {
	if l.client == nil {
		return l.takeLocal(key), nil
	}
	args := []any{
		l.now().UnixMilli(),
		l.cfg.Capacity,
		l.cfg.RefillTokens,
		l.cfg.RefillInterval.Milliseconds(),
		int64(l.cfg.TTL / time.Second),
	}
	vals, err := tokenBucketScript.Run(ctx, l.client, []string{key}, args...).Int64Slice()
	if err != nil {
		return decision{}, err
	}
	if len(vals) != 3 {
		return decision{}, fmt.Errorf("unexpected limiter reply %v", vals)
	}
	return decision{
		allowed:   vals[0] == 1,
		remaining: vals[1],
		retry:     time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

func (l *RateLimiter) takeLocal(key string) decision {
	now := l.now()
	capacity := int64(l.cfg.Capacity)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	b, ok := l.local[key]
	if !ok {
		b = &bucket{tokens: capacity, lastRefill: now}
		l.local[key] = b
	}
	b.lastSeen = now
	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		intervals := int64(elapsed / l.cfg.RefillInterval)
		if intervals > 0 {
			b.tokens = min(capacity, b.tokens+intervals*int64(l.cfg.RefillTokens))
			b.lastRefill = b.lastRefill.Add(time.Duration(intervals) * l.cfg.RefillInterval)
		}
	}
	if b.tokens > 0 {
		b.tokens--
		return decision{allowed: true, remaining: b.tokens}
	}
	retry := l.cfg.RefillInterval - now.Sub(b.lastRefill)
	if retry < 0 {
		retry = 0
	}
	return decision{remaining: 0, retry: retry}
}

// sweep drops buckets idle for longer than the TTL, at most once per TTL.
// Caller holds l.mu.
func (l *RateLimiter) sweep(now time.Time) {
	if l.cfg.TTL <= 0 || now.Sub(l.lastSweep) < l.cfg.TTL {
		return
	}
	l.lastSweep = now
	for key, b := range l.local {
		if now.Sub(b.lastSeen) >= l.cfg.TTL {
			delete(l.local, key)
		}
	}
}
