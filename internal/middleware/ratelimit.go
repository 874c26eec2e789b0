package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// 闲置限流器的保留时间
const limiterIdle = 10 * time.Minute

// RateLimiter 为每个客户端 IP 分配一个令牌桶
type RateLimiter struct {
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

// NewRateLimiter 每个 IP 每分钟允许 perMinute 次请求，突发上限为一分钟的配额
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{
		limiters: cache.New(limiterIdle, limiterIdle),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (r *RateLimiter) limiter(key string) *rate.Limiter {
	if l, ok := r.limiters.Get(key); ok {
		r.limiters.SetDefault(key, l)
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(r.limit, r.burst)
	if err := r.limiters.Add(key, l, cache.DefaultExpiration); err != nil {
		// 并发创建时以已存入的为准
		if existing, ok := r.limiters.Get(key); ok {
			return existing.(*rate.Limiter)
		}
	}
	return l
}

func (r *RateLimiter) Allow(key string) bool {
	return r.limiter(key).Allow()
}

// RateLimit 超过每分钟配额的请求返回 429
func RateLimit(perMinute int) gin.HandlerFunc {
	limiter := NewRateLimiter(perMinute)
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  "error",
				"message": "too many requests",
			})
			return
		}
		c.Next()
	}
}
