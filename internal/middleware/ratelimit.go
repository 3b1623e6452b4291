package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mailroute/backend/internal/config"
	"mailroute/backend/internal/monitoring"
)

// accountLimiter 单个账户的限流器与最近访问时间
type accountLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter 按账户限制写操作频率，未认证请求按客户端 IP 计
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	metrics *monitoring.Metrics
	log     *zap.Logger

	mu       sync.Mutex
	limiters map[string]*accountLimiter
	now      func() time.Time
}

// NewRateLimiter 创建限流器
func NewRateLimiter(cfg config.RateLimitConfig, metrics *monitoring.Metrics, log *zap.Logger) *RateLimiter {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{
		limit:    rate.Limit(float64(rpm) / 60.0),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		metrics:  metrics,
		log:      log,
		limiters: make(map[string]*accountLimiter),
		now:      time.Now,
	}
}

// Middleware 返回 gin 中间件，需放在认证中间件之后
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(ContextAccountIDKey)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		if !rl.allow(key) {
			route := c.FullPath()
			rl.metrics.RecordRateLimitBlock(route)
			rl.log.Warn("rate limit exceeded",
				zap.String("key", key),
				zap.String("route", route),
			)

			retryAfter := int(math.Ceil(1.0 / float64(rl.limit)))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": http.StatusTooManyRequests,
				"msg":  "too many requests, please try again later",
			})
			return
		}

		c.Next()
	}
}

// Size 当前持有的限流器数量
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Run 定期清理空闲的限流器，直到 done 关闭
func (rl *RateLimiter) Run(done <-chan struct{}) {
	ticker := time.NewTicker(rl.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-done:
			return
		}
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	entry, ok := rl.limiters[key]
	if !ok {
		entry = &accountLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastAccess = rl.now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

// cleanup 移除超过 idleTTL 未访问的条目
func (rl *RateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastAccess) > rl.idleTTL {
			delete(rl.limiters, key)
		}
	}
}
