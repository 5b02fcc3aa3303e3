package ratelimit

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gridsettle/tributary/internal/config"
)

// SubmitLimiter throttles submit traffic per caller address. A nil limiter
// allows everything, so handlers never branch on whether limiting is on.
type SubmitLimiter struct {
	bucket *TokenBucket
	log    *zap.Logger
	rate   float64
	burst  int
}

func NewSubmitLimiter(cfg config.Config, log *zap.Logger) *SubmitLimiter {
	rl := cfg.RateLimit
	if !rl.Enabled || rl.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: rl.RedisAddr})
	return &SubmitLimiter{
		bucket: NewTokenBucket(client),
		log:    log.Named("ratelimit"),
		rate:   rl.SubmitRate,
		burst:  rl.SubmitBurst,
	}
}

// Allow reports whether the caller may submit right now. Redis failures fail
// open: a broken limiter must not take the ledgers down with it.
func (l *SubmitLimiter) Allow(ctx context.Context, caller string) (bool, Result) {
	if l == nil {
		return true, Result{Allowed: true}
	}

	res, err := l.bucket.Allow(ctx, "ratelimit:submit:"+caller, l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limit check failed, allowing request",
			zap.String("caller", caller),
			zap.Error(err),
		)
		return true, Result{Allowed: true}
	}
	return res.Allowed, res
}
