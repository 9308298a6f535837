package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/farm-monitor/internal/config"
	"github.com/iliyamo/farm-monitor/internal/logging"
	"github.com/iliyamo/farm-monitor/internal/repository"
)

// Key strategies for the credential buckets.
const (
	StrategyIP        = "ip"
	StrategyAccount   = "account"
	StrategyIPAccount = "ip_account"
)

// maxCredentialBody bounds how much of a JSON body is read to find the
// account being signed into.
const maxCredentialBody = 64 << 10

// takeScript refills the bucket stored at KEYS[1] and takes one token.  It
// returns {allowed, tokens left, ms until the next refill}.
var takeScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local tokens = tonumber(redis.call('HGET', key, 'tokens'))
local last = tonumber(redis.call('HGET', key, 'last_ms'))
if tokens == nil or last == nil then
  tokens = capacity
  last = now_ms
end

local steps = math.floor(math.max(0, now_ms - last) / interval_ms)
if steps > 0 then
  tokens = math.min(capacity, tokens + steps * refill)
  last = last + steps * interval_ms
end

local allowed = 0
local wait_ms = 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  wait_ms = math.max(0, interval_ms - (now_ms - last))
end

redis.call('HSET', key, 'tokens', tokens, 'last_ms', last)
redis.call('EXPIRE', key, ttl)
return {allowed, tokens, wait_ms}
`)

var errBucketReply = errors.New("unexpected token bucket reply")

// verdict is the outcome of taking a token from one bucket.
type verdict struct {
	Key       string
	Allowed   bool
	Remaining int64
	Wait      time.Duration
}

type tokenBucket struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
	log logging.Logger
}

func (b tokenBucket) take(ctx context.Context, key string, now time.Time) (verdict, error) {
	vals, err := takeScript.Run(ctx, b.rdb, []string{key},
		now.UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return verdict{}, err
	}
	if len(vals) != 3 {
		return verdict{}, errBucketReply
	}
	return verdict{
		Key:       key,
		Allowed:   vals[0] == 1,
		Remaining: vals[1],
		Wait:      time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// NewTokenBucket throttles the credential endpoints with Redis token
// buckets.  Depending on the key strategy a request draws from a bucket per
// client IP, per account (the normalized user_email being signed into), or
// both; it is rejected when any of them is empty.  Redis errors fail open.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log logging.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	b := tokenBucket{cfg: cfg, rdb: rdb, log: log}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			now := time.Now()

			tightest := verdict{Allowed: true, Remaining: int64(cfg.Capacity)}
			for _, key := range bucketKeys(cfg, c) {
				v, err := b.take(ctx, key, now)
				if err != nil {
					b.log.Warn(ctx, "rate limit store unavailable", "key", key, "err", err)
					return next(c)
				}
				if !v.Allowed || v.Remaining < tightest.Remaining {
					tightest = v
				}
				if !v.Allowed {
					break
				}
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(tightest.Remaining, 10))
			if tightest.Allowed {
				return next(c)
			}

			secs := int(math.Ceil(tightest.Wait.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			b.log.Info(ctx, "credential request throttled", "key", tightest.Key, "retry_after", secs)
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"msg":         "Too many requests, retry later",
				"retry_after": secs,
			})
		}
	}
}

// bucketKeys lists the buckets a request draws from.  Keys are scoped by
// route so sign-up and sign-in are throttled separately.  A request without
// an email only draws from the IP bucket.
func bucketKeys(cfg config.RateLimitConfig, c echo.Context) []string {
	base := cfg.Prefix + ":" + c.Request().Method + " " + c.Path()
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	ipKey := base + ":ip:" + ip

	strategy := strings.ToLower(cfg.KeyStrategy)
	if strategy == StrategyIP {
		return []string{ipKey}
	}
	email := credentialEmail(c)
	if email == "" {
		return []string{ipKey}
	}
	sum := sha256.Sum256([]byte(email))
	acctKey := base + ":acct:" + hex.EncodeToString(sum[:8])
	if strategy == StrategyAccount {
		return []string{acctKey}
	}
	return []string{acctKey, ipKey}
}

// credentialEmail reads user_email from a form or JSON body without
// consuming it for the handler.
func credentialEmail(c echo.Context) string {
	req := c.Request()
	if !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return repository.NormalizeEmail(c.FormValue("user_email"))
	}
	if req.Body == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, maxCredentialBody))
	if err != nil {
		return ""
	}
	req.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), req.Body))

	var creds struct {
		Email string `json:"user_email"`
	}
	if err := json.Unmarshal(body, &creds); err != nil {
		return ""
	}
	return repository.NormalizeEmail(creds.Email)
}
