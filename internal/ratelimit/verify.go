package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/keymasterhq/keymaster/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// VerifyLimiter throttles the public verification endpoints per client
// address. When redis is not configured the limiter allows everything,
// so single-node deployments work without extra infrastructure.
type VerifyLimiter struct {
	bucket *TokenBucket
	log    *zap.Logger
	rate   float64
	burst  int
}

func NewVerifyLimiter(cfg config.Config, log *zap.Logger) *VerifyLimiter {
	limiter := &VerifyLimiter{
		log:   log.Named("ratelimit.verify"),
		rate:  cfg.VerifyRateLimit.Rate,
		burst: cfg.VerifyRateLimit.Burst,
	}
	addr := strings.TrimSpace(cfg.RedisAddr)
	if cfg.VerifyRateLimit.Enabled && addr != "" && limiter.rate > 0 && limiter.burst > 0 {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: strings.TrimSpace(cfg.RedisPassword),
			DB:       cfg.RedisDB,
		})
		limiter.bucket = NewTokenBucket(client)
	}
	return limiter
}

func (l *VerifyLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow fails open: a redis outage must not take key verification down
// with it.
func (l *VerifyLimiter) Allow(ctx context.Context, clientIP string) *Result {
	if !l.Enabled() || clientIP == "" {
		return &Result{Allowed: true, Limit: l.burst, Remaining: l.burst}
	}

	res, err := l.bucket.Allow(ctx, fmt.Sprintf("verify:ip:%s", clientIP), l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limit check failed, allowing request",
			zap.String("client_ip", clientIP),
			zap.Error(err),
		)
		return &Result{Allowed: true, Limit: l.burst, Remaining: l.burst}
	}
	return res
}
