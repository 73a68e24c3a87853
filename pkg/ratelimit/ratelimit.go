package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter 速率限制器接口
type RateLimiter interface {
	Wait(ctx context.Context) error
	Allow() bool
}

// TokenBucket 令牌桶速率限制器（基于 x/time/rate）
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket 创建令牌桶：每秒补充 perSec 个令牌，容量 burst
func NewTokenBucket(perSec float64, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(perSec), burst)}
}

// NewEvery 每隔 interval 补充一个令牌
func NewEvery(interval time.Duration, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

// Allow 检查是否允许请求（非阻塞，消耗一个令牌）
func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

// Wait 阻塞直到允许请求或 ctx 结束
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

// SetRate 运行时调整速率
func (tb *TokenBucket) SetRate(perSec float64) {
	tb.limiter.SetLimit(rate.Limit(perSec))
}

// Unlimited 不做限制
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }

func (Unlimited) Wait(context.Context) error { return nil }
